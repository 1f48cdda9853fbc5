package scenes

import (
	"bytes"
	"fmt"

	"github.com/hajimehoshi/ebiten/v2/text/v2"
	"golang.org/x/image/font/gofont/goregular"
)

// Fonts 画面使用的字体
type Fonts struct {
	body  *text.GoTextFace
	title *text.GoTextFace
}

// LoadFonts 加载内置的 Go Regular 字体
func LoadFonts() (*Fonts, error) {
	source, err := text.NewGoTextFaceSource(bytes.NewReader(goregular.TTF))
	if err != nil {
		return nil, fmt.Errorf("failed to load font: %w", err)
	}
	return &Fonts{
		body:  &text.GoTextFace{Source: source, Size: 18},
		title: &text.GoTextFace{Source: source, Size: 32},
	}, nil
}

// face 返回正文或标题字体；f 为 nil 时返回 nil
func (f *Fonts) face(large bool) text.Face {
	if f == nil {
		return nil
	}
	if large {
		return f.title
	}
	return f.body
}
