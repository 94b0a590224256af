package server

import (
	"context"
	"crypto/tls"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/mpapenbr/regatta-scoring-go/log"
	"github.com/mpapenbr/regatta-scoring-go/pkg/config"
)

type certs struct {
	ctx  context.Context
	log  *log.Logger
	cert *tls.Certificate
	mu   sync.RWMutex
}

// newTLSConfigProvider returns nil if no certificate is configured.
// The certificate is reloaded when the cert or key file changes.
func newTLSConfigProvider(ctx context.Context) *tls.Config {
	if config.TLSCertFile == "" || config.TLSKeyFile == "" {
		return nil
	}
	c := &certs{
		ctx: ctx,
		log: log.GetFromContext(ctx).Named("server.certs"),
	}
	c.loadCert()
	if c.cert == nil {
		return nil
	}
	go c.watchAndReloadCerts()
	return &tls.Config{
		GetCertificate: func(*tls.ClientHelloInfo) (*tls.Certificate, error) {
			c.mu.RLock()
			defer c.mu.RUnlock()
			return c.cert, nil
		},
		MinVersion: tls.VersionTLS13,
	}
}

func (c *certs) watchAndReloadCerts() {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		c.log.Error("could not create fsnotify watcher", log.ErrorField(err))
		return
	}
	defer watcher.Close()
	for _, f := range []string{config.TLSCertFile, config.TLSKeyFile} {
		if err := watcher.Add(f); err != nil {
			c.log.Error("could not watch file", log.String("file", f), log.ErrorField(err))
		}
	}
	for {
		select {
		case <-c.ctx.Done():
			c.log.Info("context done, stopping cert reload")
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Chmod) {
				c.log.Info("cert file changed, reloading cert",
					log.String("file", event.Name))
				c.loadCert()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			c.log.Error("watcher error", log.ErrorField(err))
		}
	}
}

func (c *certs) loadCert() {
	c.log.Info("Loading cert",
		log.String("key", config.TLSKeyFile),
		log.String("cert", config.TLSCertFile))
	cert, err := tls.LoadX509KeyPair(config.TLSCertFile, config.TLSKeyFile)
	if err != nil {
		c.log.Error("could not load TLS key pair", log.ErrorField(err))
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cert = &cert
}
