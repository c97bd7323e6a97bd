package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/DangDinhQuocTrung/pymeshio/converter"
	"github.com/DangDinhQuocTrung/pymeshio/internal/config"
	"github.com/DangDinhQuocTrung/pymeshio/internal/logger"
	"github.com/DangDinhQuocTrung/pymeshio/localize"
	"github.com/DangDinhQuocTrung/pymeshio/mmd"
	"github.com/DangDinhQuocTrung/pymeshio/scene"
	"github.com/DangDinhQuocTrung/pymeshio/textenc"
	"github.com/DangDinhQuocTrung/pymeshio/texture"
)

func loadLocalization(path string) (*localize.Table, error) {
	if path == "" {
		return localize.Default(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	t, err := localize.Load(f)
	if err != nil {
		return nil, err
	}
	bones, morphs, groups := t.Len()
	logger.Log.Debug("localization loaded", zap.String("file", path),
		zap.Int("bones", bones), zap.Int("morphs", morphs), zap.Int("groups", groups))
	return localize.Default().Merge(t), nil
}

func writerOptions(cfg *config.Config) *mmd.WriterOptions {
	enc := mmd.UTF16
	if cfg.Export.PMXEncoding == "utf8" {
		enc = mmd.UTF8
	}
	return &mmd.WriterOptions{
		NamePolicy:  textenc.ParsePolicy(cfg.Export.NamePolicy),
		PMXEncoding: enc,
		Logger:      logger.Named("mmd"),
	}
}

func export(cfg *config.Config, input, output string) error {
	s, err := scene.Open(input)
	if err != nil {
		return err
	}
	table, err := loadLocalization(cfg.Localization.Path)
	if err != nil {
		return fmt.Errorf("localization: %w", err)
	}
	model, err := converter.Convert(s, &converter.SceneToMMDOption{
		Localization: table,
		EyesBoneName: cfg.Export.EyesBone,
		Logger:       logger.Named("converter"),
	})
	if err != nil {
		return err
	}

	format := mmd.Format(cfg.Export.Format)
	if format == "" {
		if format, err = mmd.FormatFromPath(output); err != nil {
			return err
		}
	}

	if cfg.Textures.Enabled {
		packer := &texture.Packer{
			SrcDir:  filepath.Dir(input),
			DstDir:  filepath.Dir(output),
			Legacy:  cfg.Textures.Legacy,
			MaxSize: cfg.Textures.MaxSize,
			Logger:  logger.Named("texture"),
		}
		written, err := packer.Pack(model)
		if err != nil {
			return err
		}
		logger.Log.Debug("textures", zap.Strings("files", written))
	}

	if p := []rune(cfg.Export.Placeholder); len(p) == 1 && format == mmd.FormatPMD {
		model.Sanitize(p[0])
	}
	if err := mmd.SaveFile(output, model, format, writerOptions(cfg)); err != nil {
		return err
	}
	logger.Log.Info("exported", zap.String("input", input), zap.String("output", output), zap.String("format", string(format)))
	return nil
}

func inspect(path string) error {
	m, err := mmd.LoadFile(path)
	if err != nil {
		return err
	}
	logger.Log.Info("model",
		zap.String("file", path),
		zap.String("name", m.Name),
		zap.String("name_en", m.NameEn),
		zap.Int("vertices", len(m.Vertexes)),
		zap.Int("faces", len(m.Faces)),
		zap.Int("materials", len(m.Materials)),
		zap.Int("bones", len(m.Bones)),
		zap.Int("iks", len(m.IKs)),
		zap.Int("morphs", len(m.Morphs)),
		zap.Int("bone_groups", len(m.BoneGroups)),
		zap.Int("rigid_bodies", len(m.RigidBodies)),
		zap.Int("joints", len(m.Joints)))
	if err := m.Validate(); err != nil {
		logger.Log.Warn("model does not validate", zap.Error(err))
	}
	return nil
}

func pose(path, output string, w io.Writer) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	data, err := mmd.ParseVPD(f)
	if err != nil {
		return err
	}
	logger.Sugar.Debugf("pose %s: %d bones", path, len(data.Poses))
	fmt.Fprintf(w, "model: %s\n", data.Model)
	for _, p := range data.Poses {
		fmt.Fprintf(w, "%s\tpos=(%g, %g, %g)\trot=(%g, %g, %g, %g)\n",
			p.Name, p.Pos.X, p.Pos.Y, p.Pos.Z, p.Rot.X, p.Rot.Y, p.Rot.Z, p.Rot.W)
	}
	if output == "" {
		return nil
	}
	out, err := os.Create(output)
	if err != nil {
		return err
	}
	if err := mmd.WriteVPD(out, data); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
