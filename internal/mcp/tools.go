package mcp

import (
	"context"
	"fmt"
	"strings"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"gfres/internal/manifest"
)

type ListCharactersInput struct {
	Type *int `json:"type,omitempty" jsonschema:"restrict to a weapon type"`
	Rank *int `json:"rank,omitempty" jsonschema:"restrict to a rank"`
}

type GetCharacterInput struct {
	Code string `json:"code" jsonschema:"character code or manifest key"`
}

type SearchCharactersInput struct {
	Query string `json:"query" jsonschema:"case-insensitive text matched against codes and names of characters and skins"`
}

type GetSkinInput struct {
	Code string `json:"code" jsonschema:"skin code, e.g. ak47_2101"`
}

type CharacterSummaryOutput struct {
	Key        string `json:"key"`
	Code       string `json:"code"`
	Name       string `json:"name"`
	Rank       *int   `json:"rank,omitempty"`
	Type       *int   `json:"type,omitempty"`
	LaunchTime string `json:"launch_time,omitempty"`
	Skins      int    `json:"skins"`
}

type ListCharactersOutput struct {
	Characters []CharacterSummaryOutput `json:"characters"`
}

type GetCharacterOutput struct {
	Key       string             `json:"key"`
	Character manifest.Character `json:"character"`
}

type SearchResultOutput struct {
	Character    CharacterSummaryOutput `json:"character"`
	MatchedSkins []string               `json:"matched_skins,omitempty"`
}

type SearchCharactersOutput struct {
	Results []SearchResultOutput `json:"results"`
}

type GetSkinOutput struct {
	Character string        `json:"character"`
	Skin      manifest.Skin `json:"skin"`
}

func (s *Server) registerTools() {
	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "list_characters",
		Description: "List characters in manifest order with optional type and rank filters",
	}, s.handleListCharacters)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "get_character",
		Description: "Retrieve a character with all of its skins and resource references",
	}, s.handleGetCharacter)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "search_characters",
		Description: "Search characters and skins by code or name",
	}, s.handleSearchCharacters)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "get_skin",
		Description: "Retrieve a single skin and the character it belongs to",
	}, s.handleGetSkin)
}

func (s *Server) handleListCharacters(ctx context.Context, req *sdk.CallToolRequest, input ListCharactersInput) (*sdk.CallToolResult, ListCharactersOutput, error) {
	m, err := s.loader.Load(ctx)
	if err != nil {
		return nil, ListCharactersOutput{}, err
	}

	output := make([]CharacterSummaryOutput, 0, m.Len())
	for _, key := range m.Keys() {
		c, _ := m.Get(key)
		if input.Type != nil && (c.Type == nil || *c.Type != *input.Type) {
			continue
		}
		if input.Rank != nil && (c.Rank == nil || *c.Rank != *input.Rank) {
			continue
		}
		output = append(output, summaryFromCharacter(key, c))
	}
	return nil, ListCharactersOutput{Characters: output}, nil
}

func (s *Server) handleGetCharacter(ctx context.Context, req *sdk.CallToolRequest, input GetCharacterInput) (*sdk.CallToolResult, GetCharacterOutput, error) {
	if input.Code == "" {
		return nil, GetCharacterOutput{}, fmt.Errorf("code is required")
	}
	m, err := s.loader.Load(ctx)
	if err != nil {
		return nil, GetCharacterOutput{}, err
	}
	key, c := findCharacter(m, input.Code)
	if c == nil {
		return nil, GetCharacterOutput{}, fmt.Errorf("character not found")
	}
	return nil, GetCharacterOutput{Key: key, Character: *c}, nil
}

func (s *Server) handleSearchCharacters(ctx context.Context, req *sdk.CallToolRequest, input SearchCharactersInput) (*sdk.CallToolResult, SearchCharactersOutput, error) {
	query := strings.ToLower(strings.TrimSpace(input.Query))
	if query == "" {
		return nil, SearchCharactersOutput{}, fmt.Errorf("query is required")
	}
	m, err := s.loader.Load(ctx)
	if err != nil {
		return nil, SearchCharactersOutput{}, err
	}

	results := make([]SearchResultOutput, 0)
	for _, key := range m.Keys() {
		c, _ := m.Get(key)
		matched := contains(c.Code, query) || contains(c.Name, query) || contains(key, query)

		var skins []string
		for _, skin := range c.Skins {
			if contains(skin.Code, query) || contains(skin.Name, query) {
				skins = append(skins, skin.Code)
			}
		}
		if !matched && len(skins) == 0 {
			continue
		}
		results = append(results, SearchResultOutput{
			Character:    summaryFromCharacter(key, c),
			MatchedSkins: skins,
		})
	}
	return nil, SearchCharactersOutput{Results: results}, nil
}

func (s *Server) handleGetSkin(ctx context.Context, req *sdk.CallToolRequest, input GetSkinInput) (*sdk.CallToolResult, GetSkinOutput, error) {
	if input.Code == "" {
		return nil, GetSkinOutput{}, fmt.Errorf("code is required")
	}
	m, err := s.loader.Load(ctx)
	if err != nil {
		return nil, GetSkinOutput{}, err
	}
	for _, key := range m.Keys() {
		c, _ := m.Get(key)
		for _, skin := range c.Skins {
			if strings.EqualFold(skin.Code, input.Code) {
				return nil, GetSkinOutput{Character: key, Skin: skin}, nil
			}
		}
	}
	return nil, GetSkinOutput{}, fmt.Errorf("skin not found")
}

// findCharacter looks a character up by manifest key, then by code.
func findCharacter(m *manifest.Manifest, code string) (string, *manifest.Character) {
	if c, ok := m.Get(strings.ToUpper(code)); ok {
		return strings.ToUpper(code), c
	}
	for _, key := range m.Keys() {
		c, _ := m.Get(key)
		if strings.EqualFold(c.Code, code) {
			return key, c
		}
	}
	return "", nil
}

func summaryFromCharacter(key string, c *manifest.Character) CharacterSummaryOutput {
	return CharacterSummaryOutput{
		Key:        key,
		Code:       c.Code,
		Name:       c.Name,
		Rank:       c.Rank,
		Type:       c.Type,
		LaunchTime: c.LaunchTime,
		Skins:      len(c.Skins),
	}
}

func contains(value, query string) bool {
	return strings.Contains(strings.ToLower(value), query)
}
