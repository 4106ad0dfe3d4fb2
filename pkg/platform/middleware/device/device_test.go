package device

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/suite"

	"entrypass/pkg/requestcontext"
)

type DeviceSuite struct {
	suite.Suite
}

func TestDeviceSuite(t *testing.T) {
	suite.Run(t, new(DeviceSuite))
}

func (s *DeviceSuite) TestParse() {
	s.Run("empty user agent yields zero device", func() {
		s.Equal(requestcontext.Device{}, Parse(""))
	})

	s.Run("safari on iphone is mobile", func() {
		d := Parse("Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1")
		s.True(d.Mobile)
		s.Equal("iPhone", d.Platform)
		s.Contains(d.Browser, "Safari")
	})

	s.Run("firefox on linux is desktop", func() {
		d := Parse("Mozilla/5.0 (X11; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0")
		s.False(d.Mobile)
		s.Contains(d.Browser, "Firefox")
	})
}

func (s *DeviceSuite) TestMiddleware() {
	var got requestcontext.Device
	var ip string
	h := Middleware(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		got, _ = requestcontext.DeviceInfo(r.Context())
		ip = requestcontext.ClientIP(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0")
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	h.ServeHTTP(httptest.NewRecorder(), req)

	s.Equal("203.0.113.7", ip)
	s.Contains(got.Browser, "Firefox")
}
