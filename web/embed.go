package web

import _ "embed"

// Index holds the chat widget page served at the root route.
//
//go:embed index.html
var Index []byte
