// Package config loads and validates formsync.json project configuration.
//
// The configuration file has four sections, all optional:
//
//	{
//	  "server": {"addr": ":8080", "maxBodyBytes": 1048576},
//	  "submit": {"endpoint": "https://api.example.com/orders", "encoding": "json", "timeoutSeconds": 30},
//	  "store": {"backend": "s3", "s3": {"bucket": "forms", "prefix": "forms/", "region": "eu-west-1"}},
//	  "log": {"level": "info"}
//	}
//
// Missing fields fall back to defaults; unknown store backends, encodings,
// and log levels are rejected at load time.
package config
