package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/BulshitMan-BM/ntr-sub000/domain"
	"github.com/BulshitMan-BM/ntr-sub000/internal/config"
	"github.com/BulshitMan-BM/ntr-sub000/internal/ui"
)

// Run wires the container to a console front-end and drives the login
// flow until the user quits.
func Run(cfg *config.Config) error {
	c, err := NewContainer(cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	console := ui.NewConsole(os.Stdout)
	c.Machine.Subscribe(console)

	ctx := context.Background()
	if c.Machine.State() == domain.StateResuming {
		// outcome is rendered by the observer; failure falls through to
		// the login prompt
		c.Machine.Resume(ctx)
	}

	in := bufio.NewScanner(os.Stdin)
	for {
		switch c.Machine.State() {
		case domain.StateUnauthenticated:
			if done := promptLogin(ctx, c, in); done {
				return nil
			}
		case domain.StateOtpPending:
			if done := promptOtp(ctx, c, in); done {
				return nil
			}
		case domain.StateAuthenticated:
			if done := promptDashboard(ctx, c, in); done {
				return nil
			}
		default:
			// transient states resolve before control returns here
		}
	}
}

func promptLogin(ctx context.Context, c *Container, in *bufio.Scanner) bool {
	nik, ok := readLine(in, "NIK (16 digit, atau 'q' untuk keluar): ")
	if !ok || nik == "q" {
		return true
	}
	secret, ok := readLine(in, "Password: ")
	if !ok {
		return true
	}
	c.Machine.SubmitLogin(ctx, nik, secret)
	return false
}

func promptOtp(ctx context.Context, c *Container, in *bufio.Scanner) bool {
	input, ok := readLine(in, "Kode OTP ('r' kirim ulang, 'b' kembali): ")
	if !ok {
		return true
	}
	switch input {
	case "r":
		if err := c.Machine.ResendOtp(ctx); errors.Is(err, domain.ErrResendThrottled) {
			fmt.Println("! Tunggu hingga waktu kirim ulang habis.")
		}
	case "b":
		c.Machine.Cancel()
	default:
		c.Machine.SubmitOtp(ctx, input)
	}
	return false
}

func promptDashboard(ctx context.Context, c *Container, in *bufio.Scanner) bool {
	sess := c.Machine.Session()
	if sess != nil && sess.User != nil {
		fmt.Printf("Dasbor: %s (%s)\n", sess.User.Name, sess.User.Role)
	}
	input, ok := readLine(in, "['logout' atau 'q' untuk keluar]: ")
	if !ok || input == "q" {
		return true
	}
	if input == "logout" {
		c.Machine.Logout(ctx)
	}
	return false
}

func readLine(in *bufio.Scanner, prompt string) (string, bool) {
	fmt.Print(prompt)
	if !in.Scan() {
		return "", false
	}
	return strings.TrimSpace(in.Text()), true
}
