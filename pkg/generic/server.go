package generic

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"k8s.io/klog/v2"
)

type Server struct {
	Router   *gin.Engine
	Port     string
	Methods  []string
	CertFile string
	KeyFile  string
}

// ListenAndServe serves Router in the background, over TLS when both the
// certificate and the key are set. The returned function shuts the listener
// down.
func (s *Server) ListenAndServe() (func(ctx context.Context) error, error) {
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", s.Port),
		Handler: s.Router,
	}
	useTLS := len(s.CertFile) != 0 && len(s.KeyFile) != 0
	if useTLS {
		pair, err := tls.LoadX509KeyPair(s.CertFile, s.KeyFile)
		if err != nil {
			return nil, err
		}
		srv.TLSConfig = &tls.Config{Certificates: []tls.Certificate{pair}}
	}
	go func() {
		var err error
		if useTLS {
			err = srv.ListenAndServeTLS("", "")
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			klog.ErrorS(err, "Failed to serve HTTP", "port", s.Port)
		}
	}()
	return func(ctx context.Context) error {
		srv.SetKeepAlivesEnabled(false)
		return srv.Shutdown(ctx)
	}, nil
}
