package bridgesdk

import "github.com/wagiedev/bridge-sdk-go/internal/cli"

// Version is the SDK version reported to the bridge in BRIDGE_SDK_VERSION.
const Version = cli.SDKVersion
