package crypto

// initForTest derives keys with scrypt cost parameters far below
// production strength, so key-derivation-heavy tests don't spend real
// wall-clock time on a KDF that's deliberately slow in production.
func initForTest(path, passphrase string) (*KeyManager, error) {
	return initWithParams(path, passphrase, 1<<10, 8, 1)
}
