// Package doctor checks that the host can build and verify generated
// projects: the CMake and compiler toolchain, optional documentation tools,
// and access to the dependency archive host.
package doctor
