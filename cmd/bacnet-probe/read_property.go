package main

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/arloliu/go-bacnet/bacnet"
	"github.com/arloliu/go-bacnet/bip"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var objectTypeNames = map[string]bacnet.ObjectType{
	"analog-input":  bacnet.ObjectAnalogInput,
	"analog-output": bacnet.ObjectAnalogOutput,
	"analog-value":  bacnet.ObjectAnalogValue,
	"binary-input":  bacnet.ObjectBinaryInput,
	"binary-output": bacnet.ObjectBinaryOutput,
	"binary-value":  bacnet.ObjectBinaryValue,
	"device":        bacnet.ObjectDevice,
	"file":          bacnet.ObjectFile,
}

var propertyNames = map[string]bacnet.PropertyID{
	"present-value":          bacnet.PropertyPresentValue,
	"object-name":            bacnet.PropertyObjectName,
	"object-identifier":      bacnet.PropertyObjectIdentifier,
	"apdu-timeout":           bacnet.PropertyApduTimeout,
	"number-of-apdu-retries": bacnet.PropertyNumberOfRetries,
}

func newReadPropertyCommand(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "read-property",
		Short: "Read one property of an object and print the ComplexACK service data in hex",
		RunE: func(cmd *cobra.Command, _ []string) error {
			device := strings.TrimSpace(v.GetString("device"))
			if device == "" {
				return errors.New("--device is required")
			}
			dest, err := bip.ParseAddress(device)
			if err != nil {
				return err
			}
			objType, instance, err := parseObject(v.GetString("object"))
			if err != nil {
				return err
			}
			prop, err := parseProperty(v.GetString("property"))
			if err != nil {
				return err
			}

			s, err := openSession(cmd.Context(), v, cmd)
			if err != nil {
				return err
			}
			defer s.close()

			data := bacnet.AppendReadPropertyRequest(nil, objType, instance, prop, v.GetInt64("index"))
			reply, err := s.client.Request(cmd.Context(), &dest, nil, bacnet.ServiceReadProperty, data)
			if err != nil {
				return fmt.Errorf("read-property %s: %w", dest, err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), hex.EncodeToString(reply.Data))

			return nil
		},
	}

	flags := cmd.Flags()
	flags.String("device", "", "device B/IP address, host[:port]")
	flags.String("object", "device:0", "object as type:instance, type by name or number")
	flags.String("property", "present-value", "property by name or number")
	flags.Int64("index", -1, "array index, -1 for the whole property")
	bindFlags(v, flags)

	return cmd
}

func parseObject(s string) (bacnet.ObjectType, uint32, error) {
	typ, inst, ok := strings.Cut(s, ":")
	if !ok {
		return 0, 0, fmt.Errorf("invalid object %q, want type:instance", s)
	}

	objType, ok := objectTypeNames[strings.ToLower(typ)]
	if !ok {
		n, err := strconv.ParseUint(typ, 10, 10)
		if err != nil {
			return 0, 0, fmt.Errorf("invalid object type %q", typ)
		}
		objType = bacnet.ObjectType(n)
	}

	instance, err := strconv.ParseUint(inst, 10, 32)
	if err != nil || instance > bacnet.MaxObjectInstance {
		return 0, 0, fmt.Errorf("invalid object instance %q", inst)
	}

	return objType, uint32(instance), nil
}

func parseProperty(s string) (bacnet.PropertyID, error) {
	if prop, ok := propertyNames[strings.ToLower(s)]; ok {
		return prop, nil
	}
	n, err := strconv.ParseUint(s, 10, 22)
	if err != nil {
		return 0, fmt.Errorf("invalid property %q", s)
	}

	return bacnet.PropertyID(n), nil
}
