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

package platform

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/adobe/pos-autotest/lib/config"
)

func Test_resolve_priority(t *testing.T) {
	configured := config.FromMap(map[string]string{ConfigKey: "mobile"})
	broken := config.FromMap(map[string]string{ConfigKey: "desktop"})
	empty := config.FromMap(map[string]string{})

	cases := []struct {
		name     string
		override string
		props    Getter
		want     Mode
	}{
		{"override wins", "api", configured, API},
		{"configured", "", configured, Mobile},
		{"invalid override falls to config", "tablet", configured, Mobile},
		{"invalid config falls to default", "", broken, Web},
		{"nothing set", "", empty, Web},
		{"no config at all", "", nil, Web},
		{"hybrid", " Hybrid ", nil, Hybrid},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Resolve(tc.override, tc.props))
		})
	}
}

func Test_mode_kinds(t *testing.T) {
	assert.Equal(t, []Kind{KindWeb}, Web.Kinds())
	assert.Equal(t, []Kind{KindMobile, KindWeb, KindAPI}, Hybrid.Kinds())
	assert.Nil(t, Mode("X").Kinds())

	assert.True(t, Mobile.FreshState())
	assert.True(t, Hybrid.FreshState())
	assert.False(t, Web.FreshState())
	assert.False(t, API.FreshState())
}

func Test_from_tags(t *testing.T) {
	assert.Equal(t, "MOBILE", FromTags([]string{"@smoke", "@mobile", "@web"}))
	assert.Equal(t, "", FromTags([]string{"@smoke", "@TEST_POS-12"}))
}
