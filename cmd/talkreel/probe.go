package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ivlev/talkreel/internal/system"
)

func (a *app) probeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "probe [video]",
		Short: "Report a recording's streams and the usable encoders",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runProbe(cmd.Context(), args)
		},
	}
}

func (a *app) runProbe(ctx context.Context, args []string) error {
	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	path := ""
	if len(args) > 0 {
		path = args[0]
	} else if latest, err := system.FindLatest(projectDir, system.VideoExtensions); err == nil {
		path = latest
	}

	if path != "" {
		info, err := system.ProbeVideo(ctx, a.cfg.Export.FFprobePath, path)
		if err != nil {
			return err
		}
		// streams without a container duration report 0 above
		if info.Duration <= 0 {
			if d, err := system.ProbeDuration(ctx, a.cfg.Export.FFprobePath, path); err == nil {
				info.Duration = d
			}
		}
		fmt.Printf("[*] %s\n", path)
		fmt.Printf("    video: %dx%d @ %.2f FPS, %.2fs\n", info.Width, info.Height, info.FPS, info.Duration)
		fmt.Printf("    audio: %v\n", info.HasAudio)
	}

	codecs, err := system.UsableEncoders(ctx, a.cfg.Export.FFmpegPath, a.cfg.Export.Codecs)
	if err != nil {
		fmt.Printf("[!] ffmpeg unavailable (%v), export falls back to MJPEG/AVI\n", err)
	} else if len(codecs) == 0 {
		fmt.Println("[!] no preferred encoder works, export falls back to MJPEG/AVI")
	} else {
		fmt.Printf("[*] Encoders: %s\n", strings.Join(codecs, ", "))
	}

	if u, err := system.SampleUsage(); err == nil {
		fmt.Printf("[*] Host memory in use: %.1f%%\n", u.HostMemPercent)
	}
	return nil
}
