// Package client embeds the browser runtime served under /lib/client/.
package client

import (
	"embed"
	"io/fs"
)

//go:embed stateManager.js
var files embed.FS

// RuntimeFile is the name pages load the runtime by.
const RuntimeFile = "stateManager.js"

func FS() fs.FS { return files }
