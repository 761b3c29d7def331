// stubserver runs the in-memory auth endpoint locally so the console
// client can be exercised without the real backend. Issued OTP codes are
// printed to the server log.
package main

import (
	"flag"
	"log"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/BulshitMan-BM/ntr-sub000/internal/backend"
)

func main() {
	addr := flag.String("addr", ":8099", "listen address")
	nik := flag.String("nik", "1234567890123456", "accepted NIK")
	password := flag.String("password", "rahasia", "accepted password")
	noOtp := flag.Bool("no-otp", false, "skip the OTP step on login")
	flag.Parse()

	_ = godotenv.Load()

	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	stub := backend.New(backend.Options{
		Users:      map[string]string{*nik: *password},
		RequireOtp: !*noOtp,
		Logger:     logger,
	})

	logger.Info("stub auth endpoint listening",
		zap.String("addr", *addr), zap.String("nik", *nik))
	if err := stub.Router().Run(*addr); err != nil {
		log.Fatalf("server: %v", err)
	}
}
