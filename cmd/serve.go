package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/abhisek/contentgen/internal/generate"
	"github.com/abhisek/contentgen/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the content generator form over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := setup(cmd, false)
		if err != nil {
			return err
		}
		defer rt.close()

		srvCfg := rt.cfg.Server
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			srvCfg.Addr = addr
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		srv := web.New(web.Options{
			NewController: func() *generate.Controller { return rt.newController() },
			Templates:     rt.registry,
			Logger:        rt.log,
			SessionTTL:    srvCfg.SessionTTL,
			MaxSessions:   srvCfg.MaxSessions,
		})

		rt.log.Info("starting server",
			zap.String("addr", srvCfg.Addr),
			zap.String("model", rt.text.ModelID()),
			zap.String("image_model", rt.image.ModelID()),
		)

		return srv.ListenAndServe(ctx, web.HTTPConfig{
			Addr:            srvCfg.Addr,
			ReadTimeout:     srvCfg.ReadTimeout,
			WriteTimeout:    srvCfg.WriteTimeout,
			IdleTimeout:     srvCfg.IdleTimeout,
			ShutdownTimeout: srvCfg.ShutdownTimeout,
		})
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "Listen address (overrides server.addr)")
}
