package bootstrap

import (
	"log/slog"

	"github.com/probeworks/apiprobe/internal/data/cryptoutil"
)

// CreateEncryptor builds the credential encryptor for stored connection
// configs. Development setups run without a key, and a malformed key
// degrades to plaintext storage with a warning instead of refusing to
// start.
//
//nolint:ireturn // the interface hides whether a real key is configured
func CreateEncryptor(key string, logger *slog.Logger) cryptoutil.Encryptor {
	enc, err := cryptoutil.FromKeyString(key)
	if err != nil {
		warnPlaintextCredentials(logger, "credential key rejected", err)
		return cryptoutil.NoopEncryptor{}
	}
	if _, noop := enc.(cryptoutil.NoopEncryptor); noop {
		warnPlaintextCredentials(logger, "credential key is empty", nil)
	}
	return enc
}

func warnPlaintextCredentials(logger *slog.Logger, reason string, err error) {
	if logger == nil {
		return
	}
	args := []any{"reason", reason}
	if err != nil {
		args = append(args, "error", err)
	}
	logger.Warn("storing connection credentials unencrypted", args...)
}
