// Package mcp serves the character manifest to MCP clients.
package mcp

import (
	"context"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"gfres/internal/manifest"
)

// ManifestLoader supplies the manifest for each tool call, so a server
// started before a resolve run sees the new manifest.
type ManifestLoader interface {
	Load(ctx context.Context) (*manifest.Manifest, error)
}

// FileLoader reads the manifest from disk on every call.
type FileLoader struct {
	Path string
}

func (l FileLoader) Load(ctx context.Context) (*manifest.Manifest, error) {
	return manifest.Read(l.Path)
}

type Server struct {
	loader ManifestLoader
	mcp    *sdk.Server
}

func NewServer(loader ManifestLoader, version string) *Server {
	s := &Server{
		loader: loader,
		mcp: sdk.NewServer(&sdk.Implementation{
			Name:    "gfres",
			Version: version,
		}, nil),
	}
	s.registerTools()
	return s
}

func (s *Server) Run(ctx context.Context, transport sdk.Transport) error {
	return s.mcp.Run(ctx, transport)
}
