package data

import "embed"

var (
	//go:embed webauth.yaml
	Config embed.FS
)
