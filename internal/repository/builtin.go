package repository

// RegisterBuiltins binds the "ephemeral" repository factory into reg,
// ignoring any supplied config since the ephemeral workspace has no
// configurable knobs beyond its own tempdir placement. Mirrors
// internal/repositories/builtin.py's registration of
// EphemeralArtifactRepository as the default "ephemeral" entry, and the
// builtinstrategies package's own explicit RegisterAll call — Go has no
// runtime package scan to replace with an implicit default.
func RegisterBuiltins(reg *Registry) error {
	if err := reg.Register("ephemeral", func(_ map[string]any) (ArtifactRepository, error) {
		return NewEphemeral()
	}); err != nil {
		return err
	}
	return RegisterRegistryFactory(reg)
}
