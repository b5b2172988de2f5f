// Command htsget-server runs the GA4GH htsget HTTP ticket server. Grounded
// on leo-pony-model-runner's cmd/cli/commands (one cobra.Command per
// subcommand, flags registered on the command and bound through a shared
// layer) paired with internal/config's Viper layering.
package main

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/neicnordic/crypt4gh/keys"

	"github.com/ga4gh/htsget-core/internal/analytics"
	"github.com/ga4gh/htsget-core/internal/auth"
	"github.com/ga4gh/htsget-core/internal/cache"
	"github.com/ga4gh/htsget-core/internal/config"
	"github.com/ga4gh/htsget-core/internal/httpapi"
	"github.com/ga4gh/htsget-core/internal/metrics"
	"github.com/ga4gh/htsget-core/internal/storage/crypt4gh"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(exitCodeFor(err))
	}
}

// exitCodeFor maps a returned error onto spec.md §6's CLI exit-code
// contract: 1 for config/bootstrap errors, 2 for unrecoverable runtime
// errors. cobra has already printed the error by the time this runs.
func exitCodeFor(err error) int {
	if _, ok := err.(*bootstrapError); ok {
		return 1
	}
	return 2
}

type bootstrapError struct{ cause error }

func (e *bootstrapError) Error() string { return e.cause.Error() }
func (e *bootstrapError) Unwrap() error { return e.cause }

func newRootCmd() *cobra.Command {
	v := config.New()
	root := &cobra.Command{
		Use:   "htsget-server",
		Short: "GA4GH htsget ticket server",
	}
	root.PersistentFlags().String("config", "", "path to a config file")
	config.BindFlags(v, root.PersistentFlags())

	root.AddCommand(newServeCmd(v), newPrintDefaultConfigCmd())
	return root
}

func newServeCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "run the htsget HTTP ticket server",
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			cfg, err := config.Load(v, configPath)
			if err != nil {
				return &bootstrapError{cause: err}
			}
			return runServer(cmd.Context(), cfg)
		},
	}
}

func newPrintDefaultConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "print-default-config",
		Short: "print the default configuration as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := yaml.Marshal(config.Default())
			if err != nil {
				return &bootstrapError{cause: err}
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
}

func runServer(ctx context.Context, cfg config.Config) error {
	log := logrus.StandardLogger()
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}

	var httpCache *cache.Cache
	httpClient := http.DefaultClient
	if cfg.HTTPCacheDir != "" {
		var err error
		httpCache, err = cache.Open(cfg.HTTPCacheDir+"/"+cache.DefaultPath, 5*time.Minute, 1000)
		if err != nil {
			return &bootstrapError{cause: fmt.Errorf("opening HTTP cache: %v", err)}
		}
		httpClient = &http.Client{Transport: httpCache.RoundTripper(nil)}
	}

	backend, err := buildBackend(ctx, cfg, httpClient)
	if err != nil {
		return &bootstrapError{cause: fmt.Errorf("building storage backend: %v", err)}
	}

	var verifier *auth.Verifier
	if cfg.JWTJWKSURL != "" {
		verifier = auth.NewVerifier(auth.NewJWKSKeyFunc(cfg.JWTJWKSURL, httpClient, 10*time.Minute))
	}

	var serverKey *[32]byte
	var publicKeyB64 string
	if cfg.Crypt4GHServerSecKeyPath != "" {
		k, err := keys.GetPrivateKey(cfg.Crypt4GHServerSecKeyPath, func() ([]byte, error) { return nil, nil })
		if err != nil {
			return &bootstrapError{cause: fmt.Errorf("reading crypt4gh server secret key: %v", err)}
		}
		serverKey = &k
	}
	if cfg.Crypt4GHServerKeyPath != "" {
		pub, err := crypt4gh.ParsePublicKeyFile(cfg.Crypt4GHServerKeyPath)
		if err != nil {
			return &bootstrapError{cause: fmt.Errorf("reading crypt4gh server public key: %v", err)}
		}
		publicKeyB64 = base64.StdEncoding.EncodeToString(pub[:])
	}

	router := httpapi.New(httpapi.Config{
		Backend: backend,
		ServiceInfo: httpapi.ServiceInfo{
			ID:                "htsget-core",
			Name:              "htsget-core",
			Version:           "dev",
			Crypt4GHPublicKey: publicKeyB64,
		},
		Log:                      log,
		BlockPath:                cfg.LocalBlockPath,
		Verifier:                 verifier,
		Crypt4GHServerPrivateKey: serverKey,
	})

	if cfg.MetricsListen == "" {
		router.GET("/metrics", metrics.Handler())
	} else {
		metricsRouter := gin.New()
		metricsRouter.GET("/metrics", metrics.Handler())
		go func() {
			if err := metricsRouter.Run(cfg.MetricsListen); err != nil {
				log.WithError(err).Error("metrics server exited")
			}
		}()
	}

	log.WithField("listen", cfg.Listen).Info("starting htsget server")
	if httpCache != nil {
		defer httpCache.Save()
	}

	var handler http.Handler = router
	if cfg.AnalyticsPropertyID != "" && cfg.AnalyticsClientID != "" {
		analyticsClient := analytics.NewClient(cfg.AnalyticsPropertyID, cfg.AnalyticsClientID)
		handler = analytics.TrackingHandler(router, func(hits []analytics.Hit) {
			if err := analyticsClient.Send(hits); err != nil {
				log.WithError(err).Warn("sending analytics hits failed")
			}
		})
	}
	return http.ListenAndServe(cfg.Listen, handler)
}
