package filesystem

import (
	"bytes"

	"github.com/chasex/glog"

	"github.com/bidflare/bidflare/analytics"
)

// FileLogger is a Module that writes each auction transaction to a rotating file.
// Rotation is daily; use the OS logrotate daemon if you need anything fancier.
type FileLogger struct {
	Logger *glog.Logger
}

// LogAuctionObject writes the AuctionObject to file.
func (f *FileLogger) LogAuctionObject(ao *analytics.AuctionObject) {
	var b bytes.Buffer
	b.WriteString(ao.ToJson())
	f.Logger.Debug(b.String())
	f.Logger.Flush()
}

// NewFileLogger initializes the analytics module.
func NewFileLogger(filename string) (analytics.Module, error) {
	options := glog.LogOptions{
		File:  filename,
		Flag:  glog.LstdFlags,
		Level: glog.Ldebug,
		Mode:  glog.R_Day,
	}
	logger, err := glog.New(options)
	if err != nil {
		return nil, err
	}
	return &FileLogger{Logger: logger}, nil
}
