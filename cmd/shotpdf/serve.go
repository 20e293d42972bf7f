package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mdp/qrterminal/v3"
	"github.com/spf13/cobra"

	"pkt.systems/shotpdf"
	"pkt.systems/shotpdf/core"
	"pkt.systems/shotpdf/httpapi"
	"pkt.systems/shotpdf/internal/appconfig"
	"pkt.systems/pslog"
)

func newServeCmd() *cobra.Command {
	var cfgPath string
	var addr string
	var outputDir string
	var showQR bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the paste page and HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := pslog.Ctx(cmd.Context())
			cfg, err := appconfig.Load(cfgPath)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.HTTP.Addr = addr
			}
			if outputDir != "" {
				cfg.Export.OutputDir = outputDir
			}
			serviceCfg, err := cfg.ServiceConfig()
			if err != nil {
				return err
			}

			ln, err := net.Listen("tcp", cfg.HTTP.Addr)
			if err != nil {
				return err
			}
			serverCfg := shotpdf.ServerConfig{
				Service:    serviceCfg,
				HTTP:       toHTTPConfig(cfg.HTTP),
				HubHistory: cfg.HubHistory,
			}
			serverDeps := shotpdf.ServerDeps{
				ServiceDeps: core.ServiceDeps{Logger: logger},
			}
			server, err := shotpdf.New(serverCfg, serverDeps, shotpdf.WithListener(ln))
			if err != nil {
				_ = ln.Close()
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			go func() {
				<-ctx.Done()
				stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := server.Stop(stopCtx); err != nil {
					logger.Warn("server stop failed", "err", err)
				}
			}()
			url := pageURL(cfg.HTTP, ln.Addr())
			logger.Info("http server listening", "addr", ln.Addr().String(), "url", url)
			if showQR {
				printPageQR(cmd.OutOrStdout(), url)
			}
			if err := server.Start(ctx); err != nil {
				return err
			}
			return server.Wait()
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to config file")
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides http.addr)")
	cmd.Flags().StringVar(&outputDir, "output-dir", "", "also save exported documents here (overrides export.output_dir)")
	cmd.Flags().BoolVar(&showQR, "qr", false, "print the page URL as a QR code")
	return cmd
}

func toHTTPConfig(cfg appconfig.HTTPConfig) httpapi.Config {
	return httpapi.Config{
		Addr:            cfg.Addr,
		SessionCookie:   cfg.SessionCookie,
		SessionTTLHours: cfg.SessionTTLHours,
		BaseURL:         cfg.BaseURL,
		BasePath:        cfg.BasePath,
		MaxUploadBytes:  cfg.MaxUploadBytes,
	}
}

// pageURL returns the public URL of the paste page. Without a configured base
// URL it points at the listener, substituting a reachable address for the
// unspecified host.
func pageURL(cfg appconfig.HTTPConfig, addr net.Addr) string {
	basePath := strings.Trim(strings.TrimSpace(cfg.BasePath), "/")
	if basePath != "" {
		basePath = "/" + basePath
	}
	if base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"); base != "" {
		return base + basePath + "/"
	}
	host, port := "localhost", ""
	if tcp, ok := addr.(*net.TCPAddr); ok {
		port = fmt.Sprintf("%d", tcp.Port)
		switch {
		case tcp.IP == nil || tcp.IP.IsUnspecified():
			if ip := outboundIP(); ip != "" {
				host = ip
			}
		case !tcp.IP.IsLoopback():
			host = tcp.IP.String()
		}
	} else if addr != nil {
		if _, p, err := net.SplitHostPort(addr.String()); err == nil {
			port = p
		}
	}
	return "http://" + net.JoinHostPort(host, port) + basePath + "/"
}

// outboundIP returns the first non-loopback IPv4 address of the host.
func outboundIP() string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return ""
	}
	for _, addr := range addrs {
		ipNet, ok := addr.(*net.IPNet)
		if !ok || ipNet.IP.IsLoopback() {
			continue
		}
		if ip4 := ipNet.IP.To4(); ip4 != nil {
			return ip4.String()
		}
	}
	return ""
}

func printPageQR(w io.Writer, url string) {
	_, _ = fmt.Fprintf(w, "open %s\n", url)
	qrterminal.GenerateHalfBlock(url, qrterminal.L, w)
}
