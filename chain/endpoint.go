package chain

import (
	"strings"

	ma "github.com/multiformats/go-multiaddr"
	manet "github.com/multiformats/go-multiaddr/net"
	"golang.org/x/xerrors"
)

// EndpointURL turns an endpoint flag into a URL. URLs pass through, multiaddrs
// such as /ip4/127.0.0.1/tcp/8545/http or /dns4/node/tcp/443/wss are
// converted.
func EndpointURL(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", xerrors.New("empty endpoint")
	}
	if !strings.HasPrefix(s, "/") {
		return s, nil
	}

	parsed, err := ma.NewMultiaddr(s)
	if err != nil {
		return "", err
	}

	_, addr, err := manet.DialArgs(parsed)
	if err != nil {
		return "", err
	}

	scheme := "http"
	for _, p := range parsed.Protocols() {
		switch p.Name {
		case "https", "ws", "wss":
			scheme = p.Name
		}
	}
	return scheme + "://" + addr, nil
}
