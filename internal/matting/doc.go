// Package matting removes image backgrounds.
//
// Two interchangeable backends satisfy Segmenter:
//   - rembg: the general-purpose rembg CLI, invoked once per image
//   - briarmbg: the BRIA RMBG matting network, run through a MaskPredictor
//     on a letterboxed square input and composed against the original image
//
// Factory builds backends lazily so model weights are only loaded when the
// background-removal stage actually asks for them.
package matting
