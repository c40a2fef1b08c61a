/**
 * Copyright 2025 Adobe. All rights reserved.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License. You may obtain a copy
 * of the License at http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software distributed under
 * the License is distributed on an "AS IS" BASIS, WITHOUT WARRANTIES OR REPRESENTATIONS
 * OF ANY KIND, either express or implied. See the License for the specific language
 * governing permissions and limitations under the License.
 */

package drivers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adobe/pos-autotest/lib/config"
	"github.com/adobe/pos-autotest/lib/drivers/test"
	"github.com/adobe/pos-autotest/lib/platform"
	"github.com/adobe/pos-autotest/lib/session"
)

func Test_init_test_drivers(t *testing.T) {
	props := config.FromMap(map[string]string{ConfigKey: "test, test/mobile, test/api"})
	ctx := context.Background()

	set, err := Init(props)
	require.NoError(t, err)

	id := session.NewContextID()
	s, err := set.Registry().Acquire(ctx, id, platform.Hybrid)
	require.NoError(t, err)
	assert.Len(t, s.Handles(), 3)

	mobile := set.Driver("test/mobile").(*test.Driver)
	assert.Equal(t, platform.KindMobile, mobile.Kind())
	assert.Equal(t, 1, mobile.Live(id))

	require.NoError(t, set.Shutdown(ctx))
	assert.Equal(t, 0, mobile.Live(id))
	assert.EqualValues(t, 1, mobile.Closed())
	assert.Equal(t, session.Unbound, set.Registry().State(id))
}

func Test_init_errors(t *testing.T) {
	props := config.FromMap(map[string]string{})

	_, err := Init(props, "selenium-grid")
	assert.ErrorContains(t, err, "unknown driver")

	_, err = Init(props, "test", "test/web")
	assert.ErrorContains(t, err, "both provide web handles")

	_, err = Init(props, "test/desktop")
	assert.ErrorContains(t, err, "unknown handle kind")

	_, err = Init(config.FromMap(map[string]string{"test.fail.prepare": "255"}), "test")
	assert.ErrorContains(t, err, "ConfigApply failed")

	_, err = Init(config.FromMap(map[string]string{"test.fail.open": "many"}), "test")
	assert.ErrorIs(t, err, config.ErrMalformedValue)
}
