package commands

import (
	"net/http"

	"github.com/spf13/cobra"

	"github.com/wuttem/gotsdb/httpapi"
	"github.com/wuttem/gotsdb/log"
)

func serveCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the gotsdb HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, closer, err := buildEngine()
			if err != nil {
				return err
			}
			defer closer.Close()

			srv := httpapi.New(eng)
			log.Info("gotsdb listening", "addr", addr)
			return http.ListenAndServe(addr, srv.Handler())
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8080", "HTTP listen address")
	return cmd
}
