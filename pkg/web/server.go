package web

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"k8s.io/klog/v2"

	"modbushil/cmd/hil/config"
	"modbushil/cmd/hil/options"
	"modbushil/pkg/generic"
	"modbushil/pkg/simulator"
)

type Server struct {
	*generic.Server
	*config.Config
}

func NewServer(router *gin.Engine, o *options.Options, config *config.Config) (*Server, error) {
	allowMethods := []string{http.MethodPost, http.MethodGet}

	s := &generic.Server{
		Router:   router,
		Port:     o.Port,
		Methods:  allowMethods,
		CertFile: o.CertFile,
		KeyFile:  o.KeyFile,
	}

	server := &Server{
		Server: s,
		Config: config,
	}

	server.InstallHandlers()

	return server, nil
}

func (s *Server) InstallHandlers() {
	v1 := s.Router.Group("/api/v1")
	simulator.InstallHandler(v1, s.Config.Simulator, s.Config.Registry)
}

// Serve starts listening. The returned function finalizes the simulation,
// drains the broker and stops the listener.
func (s *Server) Serve() (func(ctx context.Context), error) {
	shutdown, err := s.ListenAndServe()
	if err != nil {
		return nil, err
	}

	return func(ctx context.Context) {
		if err := s.Config.Simulator.Finalize(); err != nil {
			klog.ErrorS(err, "Failed to finalize simulation")
		}
		if err := s.Config.Broker.Close(ctx); err != nil {
			klog.ErrorS(err, "Failed to close MQTT broker")
		}
		if err := shutdown(ctx); err != nil {
			klog.ErrorS(err, "Failed to shutdown HTTP server")
		}
	}, nil
}
