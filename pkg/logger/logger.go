package logger

import (
	sdklogging "github.com/Layr-Labs/eigensdk-go/logging"
)

// New creates the zap logger of the node. Production logs json at info level.
func New(production bool) (Logger, error) {
	level := sdklogging.Development
	if production {
		level = sdklogging.Production
	}
	return sdklogging.NewZapLogger(level)
}
