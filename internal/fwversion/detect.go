package fwversion

import (
	"context"

	"go.uber.org/zap"

	"github.com/mklatt/kwbreg/internal/logging"
)

// RegisterReader is the minimal transport capability the resolver needs:
// reading a run of consecutive registers from the device. Implementations
// live outside this module (Modbus client, test fakes).
type RegisterReader interface {
	// ReadRegisters reads count consecutive registers starting at address.
	ReadRegisters(ctx context.Context, address, count int) ([]uint16, error)
}

// DetectVersion reads the three consecutive version registers
// (major, minor, patch) through the transport and returns the parsed
// version string. Transport failures, partial reads, and empty results
// all degrade to the default version; detection never fails.
func (r *Resolver) DetectVersion(ctx context.Context, reader RegisterReader) string {
	address := r.VersionRegisterAddress("")
	logging.Debug("Reading version registers",
		zap.Int("start", address),
		zap.Int("end", address+2),
	)

	result, err := reader.ReadRegisters(ctx, address, 3)
	if err != nil {
		logging.Error("Error detecting version, using default",
			zap.Error(err),
			zap.String("default", r.DefaultVersion()),
		)
		return r.DefaultVersion()
	}

	switch {
	case len(result) >= 3:
		version := r.ParseComponents(int(result[0]), int(result[1]), int(result[2]))
		logging.Info("Detected software version",
			zap.String("version", version),
			zap.Int("major", int(result[0])),
			zap.Int("minor", int(result[1])),
			zap.Int("patch", int(result[2])),
		)
		return version

	case len(result) > 0:
		// Partial read: only the major version is usable
		logging.Warn("Partial version register read",
			zap.Int("got", len(result)),
			zap.Int("want", 3),
		)
		return r.ParseMajor(int(result[0]))

	default:
		logging.Warn("Could not read version registers, using default",
			zap.String("default", r.DefaultVersion()),
		)
		return r.DefaultVersion()
	}
}
