package main

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"amfgw/pkg/acl"
	"amfgw/pkg/auth"
	"amfgw/pkg/cast"
	"amfgw/pkg/config"
	"amfgw/pkg/dispatch"
	"amfgw/pkg/gateway"
	"amfgw/pkg/idgen"
	"amfgw/pkg/log"
	"amfgw/pkg/reflectsvc"
	"amfgw/pkg/registry"
)

func main() {
	fmt.Printf(`
       ___    __  _______                    __
      /   |  /  |/ / __/_____ _ ___ _      __/ /___ ___ __
     / /| | / /|_/ / _// __/ // / _ \ | /| / / _ \ `+"`"+`-V- /
    / ___ |/ /  / /_/ /_/_/  \_, /  __/ |/ |/ /  __/ |  |
   /_/  |_/_/  /_/___/___/  /___/\___/|__/|__/\___/  |__|
                                                  amf gateway
`)

	configPath := flag.String("config", "configs/config.toml", "path to gateway config")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Warn("config: %v, continuing with defaults", err)
		cfg = config.Default()
	}
	log.SetLevel(cfg.LogLevel)

	reg := registry.New()
	if cfg.TypeAliasFile != "" {
		if err := reg.LoadAliasFile(cfg.TypeAliasFile); err != nil {
			log.Warn("type-alias file: %v", err)
		}
	}

	rules := acl.New()
	if cfg.ACLRulesFile != "" {
		if err := rules.LoadSnapshot(cfg.ACLRulesFile); err != nil {
			log.Warn("acl rules: %v, starting with default-deny only", err)
		}
	}

	ids, err := idgen.New(cfg.MachineID, cfg.DataCenterID)
	if err != nil {
		log.Fatal("idgen: %v", err)
	}

	reflector := reflectsvc.NewService()
	table, err := dispatch.New(reg, nopClassLoader{}, &reflectsvc.AutoLoader{Service: reflector})
	if err != nil {
		log.Fatal("dispatch table: %v", err)
	}

	handler := &gateway.Handler{
		Table:      table,
		ACL:        rules,
		Auth:       auth.NewMemoryAuthenticator(),
		Caster:     &cast.Caster{NewInstance: reflectsvc.InstanceOf},
		GuestRole:  cfg.GuestRole,
		Production: cfg.Production,
		IDs:        ids,
	}
	engine := gateway.NewEngine(reg, handler)

	mux := http.NewServeMux()
	mux.HandleFunc("/gateway", amfHandler(engine))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	srv := &http.Server{Addr: cfg.Listen, Handler: mux}
	go func() {
		log.Info("amf gateway listening on %s", cfg.Listen)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("http server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGHUP, syscall.SIGQUIT, syscall.SIGINT, syscall.SIGTERM)
	for {
		sig := <-quit
		switch sig {
		case syscall.SIGQUIT, syscall.SIGTERM, syscall.SIGINT:
			log.Info("shutting down")
			srv.Close()
			return
		case syscall.SIGHUP:
		default:
			return
		}
	}
}

// amfHandler adapts the engine's serve(requestBytes) -> responseBytes
// boundary to an HTTP POST handler, the classic Flash Remoting
// transport: a raw application/x-amf body in, a raw body out.
func amfHandler(engine *gateway.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "read request", http.StatusBadRequest)
			return
		}
		out, err := engine.Serve(body)
		if err != nil {
			log.Error("serve: %v", err)
			http.Error(w, "malformed request", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/x-amf")
		w.Write(out)
	}
}

// nopClassLoader is the ClassLoader collaborator for a gateway with no
// dynamic class directory wired up: every auto-load lookup misses,
// which is safe, it just means only explicitly registered invocables
// are reachable.
type nopClassLoader struct{}

func (nopClassLoader) LoadClass(name string) (interface{}, bool) { return nil, false }
