package sharecodec

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/joacominatel/connections/internal/infrastructure/logging"
)

// CurrentVersion is the version tag written by Encode.
const CurrentVersion = 2

// maxTokenLength keeps tokens usable in a URL.
const maxTokenLength = 4096

var (
	ErrTokenEmpty    = errors.New("share token is empty")
	ErrTokenTooLong  = errors.New("share token is too long")
	ErrTokenEncoding = errors.New("share token is not valid base64url")
	ErrTokenPayload  = errors.New("share token payload is not valid")
)

// State is the shareable view of the connections screen.
type State struct {
	Version  int      `json:"v"`
	Tab      string   `json:"tab,omitempty"`
	Sort     string   `json:"sort,omitempty"`
	Accounts []string `json:"accounts,omitempty"`
	Compare  *Pair    `json:"compare,omitempty"`
	Filters  Filters  `json:"filters,omitempty"`
}

// Pair is a left/right comparison selection.
type Pair struct {
	Left  string `json:"left"`
	Right string `json:"right"`
}

// Filters narrows the account list.
type Filters struct {
	Badge     string `json:"badge,omitempty"`
	Profile   string `json:"profile,omitempty"`
	RiskLevel string `json:"risk_level,omitempty"`
}

// v1 tokens carried a flat left/right pair instead of Compare.
type legacyFields struct {
	Left  string `json:"left"`
	Right string `json:"right"`
}

// Codec turns State into URL-safe tokens and back.
type Codec struct {
	logger *logging.Logger
}

// New creates a codec.
func New(logger *logging.Logger) *Codec {
	return &Codec{logger: logger.WithComponent("sharecodec")}
}

// Encode stamps the current version and returns an unpadded base64url token.
func (c *Codec) Encode(state State) (string, error) {
	state.Version = CurrentVersion

	data, err := json.Marshal(state)
	if err != nil {
		return "", fmt.Errorf("encoding share state: %w", err)
	}

	token := base64.RawURLEncoding.EncodeToString(data)
	if len(token) > maxTokenLength {
		return "", ErrTokenTooLong
	}
	return token, nil
}

// Decode parses a token.
// unknown versions are logged and read as the current version.
func (c *Codec) Decode(token string) (State, error) {
	if token == "" {
		return State{}, ErrTokenEmpty
	}
	if len(token) > maxTokenLength {
		return State{}, ErrTokenTooLong
	}

	data, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		// tolerate padded tokens from older clients
		data, err = base64.URLEncoding.DecodeString(token)
		if err != nil {
			return State{}, ErrTokenEncoding
		}
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return State{}, fmt.Errorf("%w: %s", ErrTokenPayload, err.Error())
	}

	switch state.Version {
	case CurrentVersion:
	case 1:
		var legacy legacyFields
		if err := json.Unmarshal(data, &legacy); err == nil && state.Compare == nil &&
			(legacy.Left != "" || legacy.Right != "") {
			state.Compare = &Pair{Left: legacy.Left, Right: legacy.Right}
		}
	default:
		c.logger.Warn("unknown share token version, decoding as latest",
			"version", state.Version,
			"latest", CurrentVersion,
		)
	}

	state.Version = CurrentVersion
	return state, nil
}
