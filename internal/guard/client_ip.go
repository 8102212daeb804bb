package guard

import (
	"fmt"
	"net"

	"github.com/labstack/echo/v4"
)

// ClientIPExtractor decides which address c.RealIP() reports to the guard.
// Without trusted proxies only the socket peer counts and forwarding headers are ignored.
// With trusted proxies X-Forwarded-For is walked from the right, and only hops appended
// by those proxies are skipped.
func ClientIPExtractor(trustedProxies []string) (echo.IPExtractor, error) {
	prefixes, err := parsePrefixes(trustedProxies)
	if err != nil {
		return nil, fmt.Errorf("parse trusted proxies: %w", err)
	}
	if len(prefixes) == 0 {
		return echo.ExtractIPDirect(), nil
	}

	options := []echo.TrustOption{
		echo.TrustLoopback(false),
		echo.TrustLinkLocal(false),
		echo.TrustPrivateNet(false),
	}
	for _, prefix := range prefixes {
		options = append(options, echo.TrustIPRange(&net.IPNet{
			IP:   net.IP(prefix.Addr().AsSlice()),
			Mask: net.CIDRMask(prefix.Bits(), prefix.Addr().BitLen()),
		}))
	}
	return echo.ExtractIPFromXFFHeader(options...), nil
}
