package logging

import (
	"errors"
	"log/slog"
	"net/http"
	_ "net/http/pprof"
)

const pprofAddr = "localhost:6060"

// startPprof serves the default mux, which carries the pprof handlers.
func startPprof() {
	go func() {
		Logger().Info("pprof_listen", slog.String("addr", pprofAddr))
		err := http.ListenAndServe(pprofAddr, nil)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			Logger().Error("pprof_failed", slog.String("error", err.Error()))
		}
	}()
}
