package thumbnail

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/modelibr/modelibr/internal/pkg/logger"
	"github.com/modelibr/modelibr/internal/pkg/xerr"
	"go.uber.org/zap"
)

// Renderer 把模型文件渲染成 PNG 预览图
type Renderer interface {
	// Render 输入模型文件路径，返回渲染出的 PNG 字节
	Render(ctx context.Context, inputPath string) ([]byte, error)
}

// commandRenderer 调用外部渲染命令的生产实现
// 命令模板里的 {input} 和 {output} 占位符会被替换成实际路径
// 例如: blender --background --python render.py -- {input} {output}
type commandRenderer struct {
	commandTemplate string
}

// NewCommandRenderer 创建一个调用外部命令的渲染器
func NewCommandRenderer(commandTemplate string) Renderer {
	return &commandRenderer{commandTemplate: commandTemplate}
}

func (r *commandRenderer) Render(ctx context.Context, inputPath string) ([]byte, error) {
	if r.commandTemplate == "" {
		return nil, fmt.Errorf("render command not configured: %w", xerr.ErrRenderError)
	}

	outputPath := filepath.Join(os.TempDir(), "modelibr-render-"+uuid.NewString()+".png")
	defer os.Remove(outputPath)

	parts := strings.Fields(r.commandTemplate)
	if len(parts) == 0 {
		return nil, fmt.Errorf("empty render command: %w", xerr.ErrRenderError)
	}
	args := make([]string, 0, len(parts)-1)
	for _, part := range parts[1:] {
		part = strings.ReplaceAll(part, "{input}", inputPath)
		part = strings.ReplaceAll(part, "{output}", outputPath)
		args = append(args, part)
	}

	// 渲染进程不吃 ctx 取消：渲染器崩掉或卡死由租约过期兜底回收
	cmd := exec.Command(parts[0], args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		logger.Error("Render: External render command failed",
			zap.Error(err), zap.String("input", inputPath), zap.ByteString("output", output))
		return nil, fmt.Errorf("render command failed: %w", xerr.ErrRenderError)
	}

	data, err := os.ReadFile(outputPath)
	if err != nil {
		logger.Error("Render: Render command produced no output file",
			zap.Error(err), zap.String("outputPath", outputPath))
		return nil, fmt.Errorf("render output missing: %w", xerr.ErrRenderError)
	}
	return data, nil
}
