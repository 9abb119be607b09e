package nostr

import (
	"encoding/json"

	goNostr "github.com/nbd-wtf/go-nostr"
)

const (
	KindProfileMetadata = 0
)

type ProfileMetadata struct {
	Name    string `json:"name"`
	About   string `json:"about"`
	Picture string `json:"picture"`
}

func ProfileMetadataFromEvent(e *goNostr.Event) (*ProfileMetadata, error) {
	profile := &ProfileMetadata{}
	if err := json.Unmarshal([]byte(e.Content), profile); err != nil {
		return nil, err
	}

	return profile, nil
}
