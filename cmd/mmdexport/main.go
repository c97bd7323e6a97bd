package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/DangDinhQuocTrung/pymeshio/internal/config"
	"github.com/DangDinhQuocTrung/pymeshio/internal/logger"
)

func defaultOutputFile(input string, legacy bool) string {
	base := strings.TrimSuffix(input, filepath.Ext(input))
	if legacy {
		return base + ".pmd"
	}
	return base + ".pmx"
}

// applyFlags overlays the flags given on the command line.
func applyFlags(cfg *config.Config, set map[string]bool, f *cliFlags) {
	if set["loglevel"] {
		cfg.Logging.Level = *f.logLevel
	}
	if set["logfile"] {
		cfg.Logging.File = *f.logFile
	}
	if set["names"] {
		cfg.Export.NamePolicy = *f.names
	}
	if set["pmxenc"] {
		cfg.Export.PMXEncoding = *f.pmxEnc
	}
	if set["placeholder"] {
		cfg.Export.Placeholder = *f.placeholder
	}
	if set["eyes"] {
		cfg.Export.EyesBone = *f.eyes
	}
	if set["textures"] {
		cfg.Textures.Enabled = *f.textures
	}
	if set["texmax"] {
		cfg.Textures.MaxSize = *f.texMax
	}
	if set["localization"] {
		cfg.Localization.Path = *f.localization
	}
	if *f.legacy {
		cfg.Textures.Legacy = true
	}
}

type cliFlags struct {
	configPath   *string
	logLevel     *string
	logFile      *string
	names        *string
	pmxEnc       *string
	placeholder  *string
	eyes         *string
	textures     *bool
	texMax       *int
	localization *string
	legacy       *bool
	inspect      *string
	pose         *string
	output       *string
}

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] input.(yaml|gltf|glb|vrm) [output.(pmx|pmd)]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "       %s -inspect model.(pmd|pmx)\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "       %s -pose pose.vpd [-o out.vpd]\n", os.Args[0])
		flag.PrintDefaults()
	}
	f := &cliFlags{
		configPath:   flag.String("config", "", "config file (yaml)"),
		logLevel:     flag.String("loglevel", "", "debug, info, warn or error"),
		logFile:      flag.String("logfile", "", "also log to this file"),
		names:        flag.String("names", "", "oversized names: truncate or reject"),
		pmxEnc:       flag.String("pmxenc", "", "pmx text encoding: utf16 or utf8"),
		placeholder:  flag.String("placeholder", "", "substitute this character for runes .pmd cannot store"),
		eyes:         flag.String("eyes", "", "bone that eye bones follow"),
		textures:     flag.Bool("textures", true, "copy textures next to the output"),
		texMax:       flag.Int("texmax", 0, "max texture size, 0: unlimited"),
		localization: flag.String("localization", "", "name table merged over the built-in one"),
		legacy:       flag.Bool("legacy", false, "write .pmd by default and BMP textures"),
		inspect:      flag.String("inspect", "", "read a .pmd/.pmx and log a summary"),
		pose:         flag.String("pose", "", "parse a .vpd and print its records"),
		output:       flag.String("o", "", "with -pose, write the normalized pose here"),
	}
	flag.Parse()

	set := map[string]bool{}
	flag.Visit(func(fl *flag.Flag) { set[fl.Name] = true })

	cfg, err := config.Load(*f.configPath)
	if err != nil {
		log.Fatal(err)
	}
	applyFlags(cfg, set, f)
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.File); err != nil {
		log.Fatal(err)
	}

	switch {
	case *f.inspect != "":
		err = inspect(*f.inspect)
	case *f.pose != "":
		err = pose(*f.pose, *f.output, os.Stdout)
	default:
		if flag.NArg() == 0 {
			flag.Usage()
			return
		}
		input := flag.Arg(0)
		output := flag.Arg(1)
		if output == "" {
			output = defaultOutputFile(input, *f.legacy)
		}
		err = export(cfg, input, output)
	}
	if err != nil {
		logger.Log.Error("failed", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
	logger.Sync()
}
