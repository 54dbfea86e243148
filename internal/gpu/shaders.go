//go:build !nogpu

package gpu

// gradientShaderSource is the WGSL mirror of the CPU Sobel kernel. It
// writes the raw response; normalization stays on the caller so both paths
// see the same peak.
const gradientShaderSource = `
struct Params {
    width: u32,
    height: u32,
    _pad0: u32,
    _pad1: u32,
};

@group(0) @binding(0) var<uniform> params: Params;
@group(0) @binding(1) var<storage, read> gray: array<f32>;
@group(0) @binding(2) var<storage, read_write> mag: array<f32>;
@group(0) @binding(3) var<storage, read_write> dir: array<f32>;

fn sample_at(x: i32, y: i32) -> f32 {
    let cx = clamp(x, 0, i32(params.width) - 1);
    let cy = clamp(y, 0, i32(params.height) - 1);
    return gray[u32(cy) * params.width + u32(cx)];
}

@compute @workgroup_size(8, 8, 1)
fn main(@builtin(global_invocation_id) gid: vec3<u32>) {
    if (gid.x >= params.width || gid.y >= params.height) {
        return;
    }
    let x = i32(gid.x);
    let y = i32(gid.y);
    let gx = -sample_at(x - 1, y - 1) - 2.0 * sample_at(x - 1, y) - sample_at(x - 1, y + 1)
        + sample_at(x + 1, y - 1) + 2.0 * sample_at(x + 1, y) + sample_at(x + 1, y + 1);
    let gy = -sample_at(x - 1, y - 1) - 2.0 * sample_at(x, y - 1) - sample_at(x + 1, y - 1)
        + sample_at(x - 1, y + 1) + 2.0 * sample_at(x, y + 1) + sample_at(x + 1, y + 1);
    let i = gid.y * params.width + gid.x;
    mag[i] = sqrt(gx * gx + gy * gy);
    dir[i] = atan2(gy, gx);
}
`

// dotsShaderSource mirrors the position-seeded dot kernel. The hash is
// pure u32 arithmetic, so the accept/reject decision matches the CPU
// reference; only the pow() in the probability differs at f32 precision.
const dotsShaderSource = `
struct Params {
    width: u32,
    height: u32,
    seed: u32,
    _pad0: u32,
    density: f32,
    gamma: f32,
    min_radius: f32,
    max_radius: f32,
};

@group(0) @binding(0) var<uniform> params: Params;
@group(0) @binding(1) var<storage, read> luma: array<f32>;
@group(0) @binding(2) var<storage, read_write> accept: array<f32>;

fn hash2d(x: u32, y: u32, seed: u32) -> u32 {
    var h = (x * 0x9E3779B1u) ^ (y * 0x85EBCA77u) ^ (seed * 0xC2B2AE3Du);
    h = h ^ (h >> 16u);
    h = h * 0x7FEB352Du;
    h = h ^ (h >> 15u);
    h = h * 0x846CA68Bu;
    h = h ^ (h >> 16u);
    return h;
}

@compute @workgroup_size(8, 8, 1)
fn main(@builtin(global_invocation_id) gid: vec3<u32>) {
    if (gid.x >= params.width || gid.y >= params.height) {
        return;
    }
    let i = gid.y * params.width + gid.x;
    let darkness = 1.0 - luma[i];
    if (darkness <= 0.0) {
        accept[i] = 0.0;
        return;
    }
    let prob = pow(darkness, params.gamma) * params.density;
    let u = f32(hash2d(gid.x, gid.y, params.seed) >> 8u) / 16777216.0;
    if (u >= prob) {
        accept[i] = 0.0;
        return;
    }
    accept[i] = params.min_radius + (params.max_radius - params.min_radius) * darkness;
}
`
