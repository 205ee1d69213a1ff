package cmd

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"
)

var errNotReady = errors.New("toolchain is not ready; fix the entries marked missing")

// doctorReport is the machine-readable doctor output.
type doctorReport struct {
	ConfigFiles []string `json:"config_files" yaml:"config_files"`
	Resources   string   `json:"resources" yaml:"resources"`
	Source      string   `json:"source" yaml:"source"`
	SourceOK    bool     `json:"source_ok" yaml:"source_ok"`
	Tool        string   `json:"tool" yaml:"tool"`
	ToolOK      bool     `json:"tool_ok" yaml:"tool_ok"`
	Python      string   `json:"python" yaml:"python"`
	PythonOK    bool     `json:"python_ok" yaml:"python_ok"`
	Ready       bool     `json:"ready" yaml:"ready"`
}

func newDoctorCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check the firmware source tree and toolchain",
		Long: `Reports where meshflash found the MeshCore source tree, the PlatformIO
executable and the Python runtime, and whether each is usable. Nothing is
downloaded or installed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p := s.paths
			h := p.Check()
			report := doctorReport{
				ConfigFiles: s.files,
				Resources:   p.Resources,
				Source:      p.Source,
				SourceOK:    h.SourceOK,
				Tool:        p.Tool,
				ToolOK:      h.ToolOK,
				Python:      p.Python,
				PythonOK:    h.PythonOK,
				Ready:       h.OK(),
			}

			err := s.out.Print(report, func() error {
				python := p.Python
				if python == "" {
					python = "(system python3)"
				}
				files := strings.Join(s.files, ", ")
				if files == "" {
					files = "(defaults only)"
				}
				s.out.Message("Config: %s", files)
				return s.out.Table([]string{"COMPONENT", "STATUS", "PATH"}, [][]string{
					{"source tree", status(h.SourceOK), orNone(p.Source)},
					{"platformio", status(h.ToolOK), orNone(p.Tool)},
					{"python", status(h.PythonOK), python},
				})
			})
			if err != nil {
				return err
			}
			if !h.OK() {
				return errNotReady
			}
			return nil
		},
	}
}

func status(ok bool) string {
	if ok {
		return "ok"
	}
	return "missing"
}

func orNone(path string) string {
	if path == "" {
		return "(not found)"
	}
	return path
}
