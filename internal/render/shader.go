package render

// Shader sources for OpenGL ES 2.0.
//
// The fragment shader samples three single-channel (LUMINANCE) textures,
// centers chroma at zero and applies the BT.601 YUV to RGB matrix.
const (
	VertexShader = `
attribute vec4 a_position;
attribute vec2 a_texcoord;
varying vec2 v_texcoord;
void main() {
    gl_Position = a_position;
    v_texcoord = a_texcoord;
}
` + "\x00"

	FragmentShader = `
precision mediump float;
varying vec2 v_texcoord;
uniform sampler2D tex_y;
uniform sampler2D tex_u;
uniform sampler2D tex_v;
void main() {
    float y = texture2D(tex_y, v_texcoord).r;
    float u = texture2D(tex_u, v_texcoord).r - 0.5;
    float v = texture2D(tex_v, v_texcoord).r - 0.5;
    float r = y + 1.13983 * v;
    float g = y - 0.39465 * u - 0.58060 * v;
    float b = y + 2.03211 * u;
    gl_FragColor = vec4(clamp(vec3(r, g, b), 0.0, 1.0), 1.0);
}
` + "\x00"
)

// Attribute and sampler names used by the shaders.
const (
	AttrPosition = "a_position\x00"
	AttrTexCoord = "a_texcoord\x00"
)

// SamplerNames are the sampler uniforms bound to texture units 0, 1 and 2.
var SamplerNames = [3]string{"tex_y\x00", "tex_u\x00", "tex_v\x00"}

// QuadVertices is a full-screen triangle strip, interleaved as x, y, s, t.
// Texture row 0 (the first image row) maps to the top of the screen.
var QuadVertices = [16]float32{
	-1, -1, 0, 1,
	1, -1, 1, 1,
	-1, 1, 0, 0,
	1, 1, 1, 0,
}

// BT.601 coefficients, shared by the shader and ConvertPixel.
const (
	coefRV = 1.13983
	coefGU = 0.39465
	coefGV = 0.58060
	coefBU = 2.03211
)

// ConvertPixel is the CPU twin of FragmentShader for one sample.
func ConvertPixel(y, u, v byte) (r, g, b byte) {
	fy := float64(y) / 255
	fu := float64(u)/255 - 0.5
	fv := float64(v)/255 - 0.5

	return unit(fy + coefRV*fv),
		unit(fy - coefGU*fu - coefGV*fv),
		unit(fy + coefBU*fu)
}

// unit clamps x to [0,1] and scales it to a byte.
func unit(x float64) byte {
	switch {
	case x <= 0:
		return 0
	case x >= 1:
		return 255
	default:
		return byte(x*255 + 0.5)
	}
}
