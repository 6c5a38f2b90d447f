package secondme

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrMalformedPayload is returned when a provider response cannot be
// reduced to the typed result the caller asked for.
var ErrMalformedPayload = errors.New("secondme: malformed payload")

// Token is a normalised OAuth token response.
type Token struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64 // seconds, 0 when the provider did not say
	Scope        []string
	TokenType    string
}

// UserInfo is a normalised user/info response.
type UserInfo struct {
	ID     string
	Name   string
	Avatar string
	Bio    string
}

const defaultUserName = "SecondMe User"

// envelope decodes a JSON body into a generic object, unwrapping a
// top-level "data" object when present.
func envelope(body []byte) (root, payload map[string]any, err error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&root); err != nil || root == nil {
		return nil, nil, fmt.Errorf("%w: not a JSON object", ErrMalformedPayload)
	}
	payload = root
	if data, ok := root["data"].(map[string]any); ok {
		payload = data
	}
	return root, payload, nil
}

// businessOK treats a missing "code" or code 0 as success.
func businessOK(root map[string]any) bool {
	code, ok := root["code"]
	if !ok {
		return true
	}
	switch v := code.(type) {
	case json.Number:
		return v.String() == "0"
	case string:
		return v == "0"
	}
	return false
}

// firstString returns the first alias holding a non-empty string.
func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// firstScalar is like firstString but also accepts numbers, for ids.
func firstScalar(m map[string]any, keys ...string) string {
	for _, k := range keys {
		switch v := m[k].(type) {
		case string:
			if v != "" {
				return v
			}
		case json.Number:
			return v.String()
		}
	}
	return ""
}

func firstSeconds(m map[string]any, keys ...string) int64 {
	for _, k := range keys {
		var s string
		switch v := m[k].(type) {
		case json.Number:
			s = v.String()
		case string:
			s = strings.TrimSpace(v)
		default:
			continue
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
			return int64(f)
		}
	}
	return 0
}

func scopeList(v any) []string {
	switch s := v.(type) {
	case string:
		return strings.Fields(s)
	case []any:
		out := make([]string, 0, len(s))
		for _, item := range s {
			if str, ok := item.(string); ok {
				out = append(out, str)
			}
		}
		return out
	}
	return nil
}

// decodeToken normalises token endpoint responses, which arrive either
// flat or wrapped in {"code":0,"data":{...}} with snake or camel keys.
func decodeToken(body []byte) (Token, error) {
	root, p, err := envelope(body)
	if err != nil {
		return Token{}, err
	}
	if !businessOK(root) {
		return Token{}, fmt.Errorf("%w: business code %v", ErrMalformedPayload, root["code"])
	}
	access := firstString(p, "access_token", "accessToken")
	if access == "" {
		return Token{}, fmt.Errorf("%w: missing access token", ErrMalformedPayload)
	}
	return Token{
		AccessToken:  access,
		RefreshToken: firstString(p, "refresh_token", "refreshToken"),
		ExpiresIn:    firstSeconds(p, "expires_in", "expiresIn"),
		Scope:        scopeList(p["scope"]),
		TokenType:    firstString(p, "token_type", "tokenType"),
	}, nil
}

// decodeUserInfo normalises user/info responses.
func decodeUserInfo(body []byte) (UserInfo, error) {
	_, p, err := envelope(body)
	if err != nil {
		return UserInfo{}, err
	}
	id := firstScalar(p, "id", "userId", "uid")
	if id == "" {
		return UserInfo{}, fmt.Errorf("%w: missing user id", ErrMalformedPayload)
	}
	name := firstScalar(p, "name", "nickname")
	if name == "" {
		name = defaultUserName
	}
	return UserInfo{
		ID:     id,
		Name:   name,
		Avatar: firstString(p, "avatar", "avatarUrl"),
		Bio:    firstString(p, "bio", "intro"),
	}, nil
}

// chunkText pulls the text delta out of one stream event.  Frames that
// are not JSON are taken verbatim.
func chunkText(data string) string {
	if data == "" {
		return ""
	}
	var v any
	if err := json.Unmarshal([]byte(data), &v); err != nil {
		return data
	}
	switch t := v.(type) {
	case string:
		return t
	case map[string]any:
		if choices, ok := t["choices"].([]any); ok && len(choices) > 0 {
			if c, ok := choices[0].(map[string]any); ok {
				if s := nestedString(c, "delta", "content"); s != "" {
					return s
				}
				if s := nestedString(c, "message", "content"); s != "" {
					return s
				}
			}
		}
		if s := nestedString(t, "data", "content"); s != "" {
			return s
		}
		return firstString(t, "content", "text", "delta")
	}
	return ""
}

func nestedString(m map[string]any, outer, inner string) string {
	if o, ok := m[outer].(map[string]any); ok {
		if s, ok := o[inner].(string); ok {
			return s
		}
	}
	return ""
}
