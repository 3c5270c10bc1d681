// Package logging configures structured logging for farmcart.
//
// It wraps log/slog so every component logs the same way. Components accept
// a *slog.Logger through an option and fall back to Nop() when none is given.
//
//	logger, closer, err := logging.Open(logging.Config{
//	    Level:  logging.LevelDebug,
//	    Format: logging.FormatJSON,
//	    File:   "/tmp/farmcart.log",
//	})
//	defer closer.Close()
//
//	logger.Info("dispatch settled", "resource", "orders", "category", "create")
//
// When File is set, records go to both Output and the file through a
// MultiHandler.
package logging
