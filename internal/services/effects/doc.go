// Package effects resolves the transition sound effect for a mix: generated
// through an external sound-generation API when configured, with a mandatory
// local library fallback. Effect resolution never fails a render; when both
// paths come up empty the mix simply proceeds without an overlay.
package effects
