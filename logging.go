// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package remoting

import "github.com/sirupsen/logrus"

// FieldLogger is the logging seam the client and server engines take as an
// explicit constructor parameter. It is satisfied by *logrus.Logger and
// logrus.Entry, and is narrow enough to satisfy from any structured logger.
// Modeled as a constructor argument (not a package-level/DI-container
// lookup) per the Design Notes on avoiding global container lookups.
type FieldLogger interface {
	WithField(key string, value interface{}) *logrus.Entry
	WithFields(fields logrus.Fields) *logrus.Entry
	Errorf(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Debugf(format string, args ...interface{})
}

func defaultLogger() FieldLogger {
	return logrus.StandardLogger()
}
