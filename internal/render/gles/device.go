// Package gles implements render.Device on OpenGL ES 2.0.
//
// A GL context must be current on the calling OS thread for New and for
// every Device method.
package gles

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-gl/gl/v3.1/gles2"

	"github.com/HenryThomas9587/media-demo/internal/render"
)

// Device draws I420 frames with three LUMINANCE textures and the BT.601
// fragment shader.
type Device struct {
	program  uint32
	vbo      uint32
	textures [3]uint32
	posAttr  uint32
	texAttr  uint32
	viewW    int32
	viewH    int32
}

// New loads GL entry points for the current context.
func New() (*Device, error) {
	if err := gles2.Init(); err != nil {
		return nil, fmt.Errorf("gles: load entry points: %w", err)
	}

	slog.Info("gles: context ready",
		"version", gles2.GoStr(gles2.GetString(gles2.VERSION)),
		"renderer", gles2.GoStr(gles2.GetString(gles2.RENDERER)),
	)
	return &Device{}, nil
}

// Setup implements render.Device.
func (d *Device) Setup() error {
	program, err := linkProgram(render.VertexShader, render.FragmentShader)
	if err != nil {
		return err
	}
	d.program = program

	pos := gles2.GetAttribLocation(program, gles2.Str(render.AttrPosition))
	tex := gles2.GetAttribLocation(program, gles2.Str(render.AttrTexCoord))
	if pos < 0 || tex < 0 {
		return fmt.Errorf("gles: shader attributes not found (position=%d texcoord=%d)", pos, tex)
	}
	d.posAttr, d.texAttr = uint32(pos), uint32(tex)

	gles2.UseProgram(program)
	for unit, name := range render.SamplerNames {
		gles2.Uniform1i(gles2.GetUniformLocation(program, gles2.Str(name)), int32(unit))
	}

	gles2.GenBuffers(1, &d.vbo)
	gles2.BindBuffer(gles2.ARRAY_BUFFER, d.vbo)
	gles2.BufferData(gles2.ARRAY_BUFFER, len(render.QuadVertices)*4, gles2.Ptr(&render.QuadVertices[0]), gles2.STATIC_DRAW)

	return checkError("setup")
}

// Viewport implements render.Device.
func (d *Device) Viewport(width, height int) {
	d.viewW, d.viewH = int32(width), int32(height)
	gles2.Viewport(0, 0, d.viewW, d.viewH)
}

// AllocateTextures implements render.Device.
func (d *Device) AllocateTextures(width, height int) error {
	if d.textures[0] != 0 {
		gles2.DeleteTextures(3, &d.textures[0])
	}
	gles2.GenTextures(3, &d.textures[0])

	cw, ch := int32(width/2), int32(height/2)
	sizes := [3][2]int32{{int32(width), int32(height)}, {cw, ch}, {cw, ch}}

	for i, tex := range d.textures {
		gles2.BindTexture(gles2.TEXTURE_2D, tex)
		gles2.TexParameteri(gles2.TEXTURE_2D, gles2.TEXTURE_MIN_FILTER, gles2.LINEAR)
		gles2.TexParameteri(gles2.TEXTURE_2D, gles2.TEXTURE_MAG_FILTER, gles2.LINEAR)
		gles2.TexParameteri(gles2.TEXTURE_2D, gles2.TEXTURE_WRAP_S, gles2.CLAMP_TO_EDGE)
		gles2.TexParameteri(gles2.TEXTURE_2D, gles2.TEXTURE_WRAP_T, gles2.CLAMP_TO_EDGE)
		gles2.TexImage2D(gles2.TEXTURE_2D, 0, gles2.LUMINANCE, sizes[i][0], sizes[i][1], 0,
			gles2.LUMINANCE, gles2.UNSIGNED_BYTE, nil)
	}

	return checkError("allocate textures")
}

// Upload implements render.Device.
func (d *Device) Upload(plane render.Plane, width, height int, pixels []byte) error {
	if len(pixels) < width*height {
		return fmt.Errorf("gles: %s upload: got %d bytes, need %d", plane, len(pixels), width*height)
	}
	if width == 0 || height == 0 {
		return nil
	}

	gles2.PixelStorei(gles2.UNPACK_ALIGNMENT, 1)
	gles2.BindTexture(gles2.TEXTURE_2D, d.textures[plane])
	gles2.TexSubImage2D(gles2.TEXTURE_2D, 0, 0, 0, int32(width), int32(height),
		gles2.LUMINANCE, gles2.UNSIGNED_BYTE, gles2.Ptr(&pixels[0]))

	return checkError("upload " + plane.String())
}

// Clear implements render.Device.
func (d *Device) Clear(c [4]float32) error {
	gles2.ClearColor(c[0], c[1], c[2], c[3])
	gles2.Clear(gles2.COLOR_BUFFER_BIT)
	return checkError("clear")
}

// DrawQuad implements render.Device.
func (d *Device) DrawQuad() error {
	gles2.UseProgram(d.program)

	for i, tex := range d.textures {
		gles2.ActiveTexture(gles2.TEXTURE0 + uint32(i))
		gles2.BindTexture(gles2.TEXTURE_2D, tex)
	}

	const stride = 4 * 4
	gles2.BindBuffer(gles2.ARRAY_BUFFER, d.vbo)
	gles2.EnableVertexAttribArray(d.posAttr)
	gles2.VertexAttribPointer(d.posAttr, 2, gles2.FLOAT, false, stride, gles2.PtrOffset(0))
	gles2.EnableVertexAttribArray(d.texAttr)
	gles2.VertexAttribPointer(d.texAttr, 2, gles2.FLOAT, false, stride, gles2.PtrOffset(2*4))

	gles2.DrawArrays(gles2.TRIANGLE_STRIP, 0, 4)

	gles2.DisableVertexAttribArray(d.posAttr)
	gles2.DisableVertexAttribArray(d.texAttr)
	gles2.ActiveTexture(gles2.TEXTURE0)

	return checkError("draw")
}

// Teardown implements render.Device.
func (d *Device) Teardown() {
	if d.textures[0] != 0 {
		gles2.DeleteTextures(3, &d.textures[0])
	}
	if d.vbo != 0 {
		gles2.DeleteBuffers(1, &d.vbo)
	}
	if d.program != 0 {
		gles2.DeleteProgram(d.program)
	}
	*d = Device{viewW: d.viewW, viewH: d.viewH}
}

func linkProgram(vertexSrc, fragmentSrc string) (uint32, error) {
	vs, err := compileShader(vertexSrc, gles2.VERTEX_SHADER)
	if err != nil {
		return 0, err
	}
	defer gles2.DeleteShader(vs)

	fs, err := compileShader(fragmentSrc, gles2.FRAGMENT_SHADER)
	if err != nil {
		return 0, err
	}
	defer gles2.DeleteShader(fs)

	program := gles2.CreateProgram()
	gles2.AttachShader(program, vs)
	gles2.AttachShader(program, fs)
	gles2.LinkProgram(program)

	var status int32
	gles2.GetProgramiv(program, gles2.LINK_STATUS, &status)
	if status == gles2.FALSE {
		var logLen int32
		gles2.GetProgramiv(program, gles2.INFO_LOG_LENGTH, &logLen)
		log := strings.Repeat("\x00", int(logLen+1))
		gles2.GetProgramInfoLog(program, logLen, nil, gles2.Str(log))
		gles2.DeleteProgram(program)
		return 0, fmt.Errorf("gles: link program: %s", strings.TrimRight(log, "\x00"))
	}

	return program, nil
}

func compileShader(source string, kind uint32) (uint32, error) {
	shader := gles2.CreateShader(kind)

	csources, free := gles2.Strs(source)
	gles2.ShaderSource(shader, 1, csources, nil)
	free()
	gles2.CompileShader(shader)

	var status int32
	gles2.GetShaderiv(shader, gles2.COMPILE_STATUS, &status)
	if status == gles2.FALSE {
		var logLen int32
		gles2.GetShaderiv(shader, gles2.INFO_LOG_LENGTH, &logLen)
		log := strings.Repeat("\x00", int(logLen+1))
		gles2.GetShaderInfoLog(shader, logLen, nil, gles2.Str(log))
		gles2.DeleteShader(shader)
		return 0, fmt.Errorf("gles: compile shader: %s", strings.TrimRight(log, "\x00"))
	}

	return shader, nil
}

// checkError turns a pending GL error into a Go error. GL_OUT_OF_MEMORY
// leaves the context in an undefined state and is reported as surface loss.
func checkError(op string) error {
	code := gles2.GetError()
	switch code {
	case gles2.NO_ERROR:
		return nil
	case gles2.OUT_OF_MEMORY:
		return &render.SurfaceLostError{Op: op, Err: fmt.Errorf("GL_OUT_OF_MEMORY")}
	default:
		return fmt.Errorf("gles: %s: GL error 0x%04x", op, code)
	}
}
