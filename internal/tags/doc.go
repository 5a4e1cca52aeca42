// Package tags derives normalized tags from asset file paths.
//
// Directory names and filename stems carry most of the searchable signal in a
// game-art tree ("Goblins_v1.2/Hero_ATK_v2.png"), so words are split out,
// cleaned of version markers and noise, and alias-resolved into a canonical
// tag set. The vocabulary can be replaced from a YAML file.
package tags
