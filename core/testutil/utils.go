package testutil

import (
	"os"

	sdklogging "github.com/Layr-Labs/eigensdk-go/logging"
	"github.com/ethereum/go-ethereum/common"

	"github.com/AvaProtocol/ap-oracle/storage"
)

const (
	TestMnemonic = "achieve climb couple wait accident symbol spy blouse reduce foil echo label"
	TestXpub     = "xpub661MyMwAqRbcGeCE1g3KTUVGZsFDE3jMNinRPGCQGQsAp1nwinB9Pi16ihKPJw7qtaaTFuBHbRPeSc6w3AcMjxiHkAPfyp1hqQRbthv4Ryx"
)

var (
	TestContract   = common.HexToAddress("0x2AB9f26E18B64848cd349582ca3B55c2d06f507d")
	TestProviderID = common.HexToHash("0xf5ad700af68118777f79fd1d1c8568f7377d4ae9e9ccce5970fe63bc7a1c1d6d")
)

// Shortcut to initialize a storage in a temp dir, panic if we cannot create db
func TestMustDB() storage.Storage {
	dir, err := os.MkdirTemp("", "aporacletest")
	if err != nil {
		panic(err)
	}

	db, err := storage.NewWithPath(dir)
	if err != nil {
		panic(err)
	}
	return db
}

func GetLogger() sdklogging.Logger {
	logger, err := sdklogging.NewZapLogger("development")
	if err != nil {
		panic(err)
	}
	return logger
}

// Selector returns a 4 byte selector filled with b, handy for fixtures.
func Selector(b byte) [4]byte {
	return [4]byte{b, b, b, b}
}
