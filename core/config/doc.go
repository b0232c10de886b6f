// Package config fills configuration structs from the environment.
//
// Fields are declared with caarlos0/env tags. A .env file in the working
// directory, when present, is read once before the first parse:
//
//	var cfg stream.Config
//	if err := config.Load(&cfg); err != nil {
//		return err
//	}
//
// The parsed value is kept per struct type, so a second Load of the same type
// does not touch the environment again. Load returns ErrNilConfig for a nil
// pointer and wraps parse failures with the type name. MustLoad panics instead
// and is meant for process startup.
package config
