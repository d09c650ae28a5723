package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"visioncraft/internal/imagefile"
	"visioncraft/internal/poster"
	"visioncraft/internal/studio"
)

var errQuit = errors.New("quit")

const usage = `commands:
  upload <path>              load a product photo
  clear                      remove the product photo
  prompt <text>              set the plain text prompt
  json <text>                set the structured prompt
  mode plain_text|json       switch prompt mode
  ratio <r>                  aspect ratio (9:16 1:1 16:9 3:4 4:3)
  creativity <0..1>          creativity level
  bg on|off                  background removal
  theme <id>                 default, dark or mariana
  view original|generated    canvas view
  generate                   make a poster
  advice                     suggestions for the current poster
  save [path]                write the poster as PNG
  pdf [path]                 write the poster as PDF
  state                      show the studio
  reset                      start over
  quit                       leave`

type console struct {
	studio *studio.Controller
	out    io.Writer
	dir    string
}

// exec runs one input line. It returns errQuit when the user asks to leave.
func (c *console) exec(ctx context.Context, line string) error {
	name, args, _ := strings.Cut(strings.TrimSpace(line), " ")
	args = strings.TrimSpace(args)

	switch strings.ToLower(name) {
	case "":
		return nil
	case "help", "?":
		fmt.Fprintln(c.out, usage)
	case "quit", "exit":
		return errQuit

	case "upload":
		if args == "" {
			return errors.New("usage: upload <path>")
		}
		data, err := os.ReadFile(args)
		if err != nil {
			return err
		}
		img, err := imagefile.Decode(data, "")
		if err != nil {
			return err
		}
		c.studio.Upload(img)
		fmt.Fprintln(c.out, "analyzing product…")
		c.settle()
		c.printState()

	case "clear":
		c.studio.ClearImage()
		c.printState()

	case "prompt":
		return c.update(poster.SettingsPatch{Prompt: &args})
	case "json":
		return c.update(poster.SettingsPatch{JSONPrompt: &args})
	case "mode":
		mode, ok := poster.ParsePromptMode(args)
		if !ok {
			return fmt.Errorf("unknown prompt mode %q", args)
		}
		return c.update(poster.SettingsPatch{PromptMode: &mode})
	case "ratio":
		ar := poster.AspectRatio(args)
		return c.update(poster.SettingsPatch{AspectRatio: &ar})
	case "creativity":
		v, err := strconv.ParseFloat(args, 64)
		if err != nil {
			return fmt.Errorf("invalid creativity %q", args)
		}
		return c.update(poster.SettingsPatch{Creativity: &v})

	case "bg":
		on, err := parseOnOff(args)
		if err != nil {
			return err
		}
		c.studio.SetRemoveBackground(on)
		c.settle()
		c.printState()

	case "theme":
		if _, err := c.studio.SetTheme(args); err != nil {
			return err
		}
		c.printState()

	case "view":
		view, ok := studio.ParseView(args)
		if !ok {
			return fmt.Errorf("unknown view %q", args)
		}
		if _, err := c.studio.SetCanvasView(view); err != nil {
			return err
		}
		c.printState()

	case "generate":
		fmt.Fprintln(c.out, "generating…")
		st, err := c.studio.Generate(ctx)
		if err != nil {
			return err
		}
		if st.Error != "" {
			return errors.New(st.Error)
		}
		c.printState()

	case "advice":
		st, err := c.studio.GetAdvice(ctx)
		if err != nil {
			return err
		}
		for i, a := range st.Advice {
			fmt.Fprintf(c.out, "%d) %s\n", i+1, a.Text)
		}

	case "save":
		img, name, err := c.studio.Download()
		if err != nil {
			return err
		}
		return c.write(args, name, img.Data)

	case "pdf":
		data, name, err := c.studio.ExportPDF()
		if err != nil {
			return err
		}
		return c.write(args, name, data)

	case "state":
		c.printState()

	case "reset":
		c.studio.Reset()
		c.printState()

	default:
		return fmt.Errorf("unknown command %q, try help", name)
	}
	return nil
}

func (c *console) update(patch poster.SettingsPatch) error {
	if _, err := c.studio.UpdateSettings(patch); err != nil {
		return err
	}
	c.printState()
	return nil
}

// settle waits for the describe and background removal chain.
func (c *console) settle() {
	_ = c.studio.Wait()
}

func (c *console) write(path, name string, data []byte) error {
	if path == "" {
		path = filepath.Join(c.dir, name)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "saved %s (%d bytes)\n", path, len(data))
	return nil
}

func (c *console) printState() {
	st := c.studio.Snapshot()

	product := "(none)"
	if st.Product != nil {
		product = st.Product.Description
	}
	bg := "off"
	if st.RemoveBackground {
		bg = "on"
		if st.Cutout != nil {
			bg += ", cutout ready"
		}
	}

	fmt.Fprintf(c.out, "product:    %s\n", product)
	fmt.Fprintf(c.out, "background: %s\n", bg)
	fmt.Fprintf(c.out, "ratio:      %s\n", st.Settings.AspectRatio)
	fmt.Fprintf(c.out, "mode:       %s\n", st.Settings.PromptMode)
	fmt.Fprintf(c.out, "prompt:     %s\n", oneLine(st.Settings.EffectivePrompt()))
	fmt.Fprintf(c.out, "creativity: %s%%\n", poster.CreativityPercent(st.Settings.Creativity))
	fmt.Fprintf(c.out, "theme:      %s\n", st.Theme.Name())
	fmt.Fprintf(c.out, "canvas:     %s\n", st.Canvas().Label)
	if st.Error != "" {
		fmt.Fprintf(c.out, "error:      %s\n", st.Error)
	}
}

func parseOnOff(value string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "on", "true", "1", "yes":
		return true, nil
	case "off", "false", "0", "no":
		return false, nil
	}
	return false, fmt.Errorf("expected on or off, got %q", value)
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
