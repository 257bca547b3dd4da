package api

import (
	"github.com/cloudverse/metering-center/config"
	"github.com/cloudverse/metering-center/core/tasklock"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

type Server struct {
	cfg    config.Config
	router *gin.Engine
}

func NewServer(cfg config.Config, locks *tasklock.Registry) (*Server, error) {
	gin.SetMode(cfg.Mode)
	router := gin.Default()
	router.Use(cors.Default())
	ConfigRouter(router, cfg, locks)

	s := &Server{
		cfg:    cfg,
		router: router,
	}

	go s.Run()

	return s, nil
}

func (s *Server) Run() {
	err := s.router.Run(s.cfg.ApiListen)
	if err != nil {
		log.Fatal(err)
	}
}
