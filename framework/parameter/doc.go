// Package parameter defines the configuration value type handed out by the
// container and the Provider capability that supplies it.
//
// A Parameter is a string with lenient typed accessors:
//
//	p := parameter.New("8080")
//	p.Int()     // 8080
//	p.Float64() // 8080
//	p.Bool()    // false: not a bool, falls back to the zero value
//
// Providers are plain services registered in the container and tagged with
// container.ParameterProviderTag; see package providers for the bundled ones.
package parameter
