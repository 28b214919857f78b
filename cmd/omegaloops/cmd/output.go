package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gosuri/uilive"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
	log "github.com/sirupsen/logrus"

	"go-omegaloops/internal/models"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(out io.Writer, headers []string, rows [][]string, aligns []columnAlignment) {
	columns := len(headers)
	if columns == 0 {
		return
	}

	tw := table.NewWriter()
	tw.SetOutputMirror(out)
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i, h := range headers {
		header[i] = h
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := 0; i < columns; i++ {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		configs = append(configs, table.ColumnConfig{Number: i + 1, Align: align, AlignHeader: text.AlignLeft})
	}
	tw.SetColumnConfigs(configs)
	tw.Render()
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// progressPrinter renders UploadState updates: a live line on a terminal,
// log lines at each checkpoint otherwise.
type progressPrinter struct {
	live    *uilive.Writer
	name    string
	lastMsg string
}

func newProgressPrinter(out io.Writer, name string) *progressPrinter {
	p := &progressPrinter{name: name}
	if isTerminal(out) {
		p.live = uilive.New()
		p.live.Out = out
		p.live.Start()
	}
	return p
}

func (p *progressPrinter) update(s models.UploadState) {
	if p.live != nil {
		fmt.Fprintf(p.live, "%s %s %3d%% %s\n", p.name, progressBar(s.Progress, 30), s.Progress, s.Message)
		return
	}
	if s.Message == p.lastMsg && !s.Terminal() {
		return
	}
	p.lastMsg = s.Message
	log.WithFields(log.Fields{"file": p.name, "progress": s.Progress, "status": s.Status}).Info(s.Message)
}

func (p *progressPrinter) stop() {
	if p.live != nil {
		p.live.Stop()
	}
}

func progressBar(progress, width int) string {
	filled := progress * width / 100
	return "[" + strings.Repeat("=", filled) + strings.Repeat(" ", width-filled) + "]"
}

// confirm asks a yes/no question on in and defaults to no.
func confirm(in io.Reader, out io.Writer, question string) bool {
	fmt.Fprintf(out, "%s [y/N]: ", question)
	answer, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && answer == "" {
		return false
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}
