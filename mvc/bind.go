package mvc

import (
	"context"
	"net/url"
	"strings"
)

// Bind merges query parameters and a url-encoded request body into Params.
//
// The body is percent-decoded as a whole, then split on '&' and '='.
// Fragments that are not exactly one non-empty key and one non-empty
// value are skipped and returned as FragmentErrors. Body values win over
// query values with the same key. Only the first value of a repeated
// query key is kept.
func Bind(ctx context.Context, query url.Values, body []byte) (*Params, []FragmentError) {
	values := make(map[string]string, len(query))
	for key, vs := range query {
		if len(vs) > 0 {
			values[key] = vs[0]
		}
	}

	decoded := decodeBody(body)
	if strings.TrimSpace(decoded) == "" {
		return NewParams(ctx, values), nil
	}

	var skipped []FragmentError
	for _, fragment := range strings.Split(decoded, "&") {
		if fragment == "" {
			continue
		}
		pair := strings.Split(fragment, "=")
		if len(pair) != 2 || pair[0] == "" || pair[1] == "" {
			skipped = append(skipped, FragmentError{Fragment: fragment})
			continue
		}
		values[pair[0]] = pair[1]
	}

	return NewParams(ctx, values), skipped
}

// decodeBody falls back to the raw text when the body is not valid
// percent-encoding.
func decodeBody(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	raw := string(body)
	decoded, err := url.QueryUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}
