package xclient

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Signer adds OAuth 1.0a HMAC-SHA1 Authorization headers. JSON bodies are not
// part of the signature base; query parameters are.
type Signer struct {
	creds   Credentials
	nowFn   func() time.Time
	nonceFn func() string
}

func NewSigner(creds Credentials) *Signer {
	return &Signer{
		creds:   creds,
		nowFn:   time.Now,
		nonceFn: func() string { return strconv.FormatInt(rand.Int63(), 36) },
	}
}

// Sign sets the Authorization header on req.
func (s *Signer) Sign(req *http.Request) {
	oauth := map[string]string{
		"oauth_consumer_key":     s.creds.ConsumerKey,
		"oauth_nonce":            s.nonceFn(),
		"oauth_signature_method": "HMAC-SHA1",
		"oauth_timestamp":        strconv.FormatInt(s.nowFn().Unix(), 10),
		"oauth_token":            s.creds.AccessToken,
		"oauth_version":          "1.0",
	}
	oauth["oauth_signature"] = s.signature(req, oauth)

	hdrKeys := make([]string, 0, len(oauth))
	for k := range oauth {
		hdrKeys = append(hdrKeys, k)
	}
	sort.Strings(hdrKeys)
	authParts := make([]string, 0, len(hdrKeys))
	for _, k := range hdrKeys {
		authParts = append(authParts, fmt.Sprintf("%s=\"%s\"", rfc3986(k), rfc3986(oauth[k])))
	}
	req.Header.Set("Authorization", "OAuth "+strings.Join(authParts, ", "))
}

func (s *Signer) signature(req *http.Request, oauth map[string]string) string {
	var pairs [][2]string
	for k, v := range oauth {
		pairs = append(pairs, [2]string{rfc3986(k), rfc3986(v)})
	}
	for k, vs := range req.URL.Query() {
		for _, v := range vs {
			pairs = append(pairs, [2]string{rfc3986(k), rfc3986(v)})
		}
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i][0] != pairs[j][0] {
			return pairs[i][0] < pairs[j][0]
		}
		return pairs[i][1] < pairs[j][1]
	})
	parts := make([]string, 0, len(pairs))
	for _, p := range pairs {
		parts = append(parts, p[0]+"="+p[1])
	}
	baseURL := strings.ToLower(req.URL.Scheme) + "://" + strings.ToLower(req.URL.Host) + req.URL.EscapedPath()
	base := strings.ToUpper(req.Method) + "&" + rfc3986(baseURL) + "&" + rfc3986(strings.Join(parts, "&"))
	key := rfc3986(s.creds.ConsumerSecret) + "&" + rfc3986(s.creds.AccessSecret)
	mac := hmac.New(sha1.New, []byte(key))
	_, _ = mac.Write([]byte(base))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// RFC 3986 percent-encoding for OAuth
func rfc3986(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(url.QueryEscape(s), "+", "%20"), "*", "%2A")
}
