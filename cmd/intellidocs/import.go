package main

import (
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"intellidocs/internal/config"
	"intellidocs/internal/service"
	"intellidocs/pkg/log"
)

var (
	importOrg  uint
	importUser uint
)

var importCmd = &cobra.Command{
	Use:   "import [dir]",
	Short: "Upload every supported file under a directory",
	Long: `Walks a directory and uploads each supported file into the given organization.
With ingestion.dispatcher=local the files are processed before the command returns;
with kafka they are queued for the worker command.`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	importCmd.Flags().UintVar(&importOrg, "org", 0, "organization id (required)")
	importCmd.Flags().UintVar(&importUser, "user", 1, "uploader user id")
	_ = importCmd.MarkFlagRequired("org")
	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	cfg := config.Conf
	dir := args[0]
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return fmt.Errorf("目录 '%s' 不存在或不可用", dir)
	}
	if importOrg == 0 {
		return errors.New("--org 必须为正整数")
	}

	ctx, stop := signalContext()
	defer stop()
	a, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	docs := service.NewDocumentService(a.docs, a.store, newCommandDispatcher(cfg, a), a.mirror)
	acceptAll := cfg.Extractor.Fallback == "tika"

	var imported, skipped int
	walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			log.Warnf("import: 访问 %s 失败: %v", path, err)
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if !acceptAll && !supportedExtensions[ext] {
			skipped++
			return nil
		}

		f, err := os.Open(path)
		if err != nil {
			log.Warnf("import: 打开文件失败: %s, err=%v", path, err)
			return nil
		}
		defer f.Close()
		info, err := f.Stat()
		if err != nil {
			return nil
		}
		if info.Size() == 0 {
			log.Infof("import: 空文件跳过: %s", path)
			skipped++
			return nil
		}

		doc, err := docs.Upload(ctx, service.UploadInput{
			FileName:       d.Name(),
			Size:           info.Size(),
			MimeType:       mime.TypeByExtension(ext),
			Reader:         f,
			OrganizationID: importOrg,
			UploaderID:     importUser,
		})
		if err != nil {
			log.Warnf("import: 上传失败: %s, err=%v", path, err)
			return nil
		}
		imported++
		fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\n", doc.ID, path)
		return nil
	})
	log.Infof("import: 完成, 导入 %d 个文件, 跳过 %d 个", imported, skipped)
	return walkErr
}

var supportedExtensions = map[string]bool{
	".pdf":  true,
	".docx": true,
}
