// Package ui contains the console adapter: it only renders state machine
// notifications and never holds authentication logic of its own.
package ui

import (
	"fmt"
	"io"
	"time"

	"github.com/BulshitMan-BM/ntr-sub000/domain"
)

// Console renders auth events as terminal lines. Error notices are
// printed once; the browser panel's auto-dismiss has no terminal
// equivalent.
type Console struct {
	out io.Writer
}

func NewConsole(out io.Writer) *Console {
	return &Console{out: out}
}

func (c *Console) OnAuthEvent(e domain.Event) {
	switch e.Type {
	case domain.EventStateChanged:
		c.renderState(e)
	case domain.EventOtpExpired:
		fmt.Fprintln(c.out, "! Kode OTP kedaluwarsa. Minta kode baru untuk melanjutkan.")
	case domain.EventOtpResent:
		fmt.Fprintln(c.out, "> Kode OTP baru telah dikirim.")
	case domain.EventCooldownStarted:
		fmt.Fprintf(c.out, "> Kirim ulang tersedia dalam %s.\n", formatDuration(e.Cooldown))
	case domain.EventCooldownTick:
		c.renderCountdown(e)
	case domain.EventCooldownEnded:
		fmt.Fprintln(c.out, "> Kirim ulang OTP sekarang tersedia.")
	case domain.EventAuthError:
		fmt.Fprintf(c.out, "! %s\n", e.Message)
	case domain.EventSessionEstablished:
		name := ""
		if e.User != nil {
			name = e.User.Name
		}
		fmt.Fprintf(c.out, "* Selamat datang, %s.\n", name)
	case domain.EventLoggedOut:
		fmt.Fprintln(c.out, "* Anda telah keluar.")
	}
}

func (c *Console) renderState(e domain.Event) {
	switch e.To {
	case domain.StateLoginSubmitting:
		fmt.Fprintln(c.out, "... memeriksa kredensial")
	case domain.StateOtpPending:
		fmt.Fprintln(c.out, "Masukkan kode OTP 6 digit yang dikirim ke perangkat Anda.")
	case domain.StateOtpSubmitting:
		fmt.Fprintln(c.out, "... memverifikasi kode")
	case domain.StateResuming:
		fmt.Fprintln(c.out, "... memulihkan sesi")
	}
}

func (c *Console) renderCountdown(e domain.Event) {
	if e.OtpLeft <= 0 && e.ResendIn <= 0 {
		return
	}
	line := "\r"
	if e.OtpLeft > 0 {
		line += fmt.Sprintf("OTP berlaku %s", formatDuration(e.OtpLeft))
	}
	if e.ResendIn > 0 {
		if e.OtpLeft > 0 {
			line += " | "
		}
		line += fmt.Sprintf("kirim ulang %s", formatDuration(e.ResendIn))
	}
	fmt.Fprint(c.out, line+"   ")
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	m := int(d.Minutes())
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d", m, s)
}

var _ domain.Observer = (*Console)(nil)
